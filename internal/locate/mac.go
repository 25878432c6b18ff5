// Triangulum - Radio Geolocation and Observation Ingest Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/triangulum

package locate

import (
	"context"
	"math"
	"sort"

	"github.com/rs/zerolog"

	"github.com/tomtom215/triangulum/internal/geocalc"
	"github.com/tomtom215/triangulum/internal/models"
)

// network is a found station paired with the signal the device reported.
type network struct {
	mac    string
	lat    float64
	lon    float64
	signal int
}

// cluster is a group of networks within the cluster distance of each
// other, strongest signal first.
type cluster []network

func (c cluster) avgSignal() float64 {
	sum := 0
	for _, n := range c {
		sum += n.signal
	}
	return float64(sum) / float64(len(c))
}

func (c cluster) box() geocalc.Box {
	pts := make([]geocalc.Point, len(c))
	for i, n := range c {
		pts[i] = geocalc.Point{Lat: n.lat, Lon: n.lon}
	}
	box, _ := geocalc.AggregateBox(pts)
	return box
}

func (c cluster) spread() float64 {
	return c.box().Diagonal()
}

// signalWeight turns a dBm value into a linear weight that favours strong
// signals.
func signalWeight(dbm int) float64 {
	return math.Pow(10, float64(dbm)/20)
}

// clusterNetworks greedily groups networks. Networks are visited by
// decreasing signal; each joins the first cluster holding a member within
// maxDistance meters, otherwise it seeds a new cluster. Clusters with
// fewer than MinMACsInCluster members are discarded.
func clusterNetworks(nets []network, maxDistance float64) []cluster {
	sorted := make([]network, len(nets))
	copy(sorted, nets)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].signal != sorted[j].signal {
			return sorted[i].signal > sorted[j].signal
		}
		return sorted[i].mac < sorted[j].mac
	})

	var clusters []cluster
	for _, n := range sorted {
		joined := false
		for ci := range clusters {
			for _, m := range clusters[ci] {
				if geocalc.Distance(n.lat, n.lon, m.lat, m.lon) <= maxDistance {
					clusters[ci] = append(clusters[ci], n)
					joined = true
					break
				}
			}
			if joined {
				break
			}
		}
		if !joined {
			clusters = append(clusters, cluster{n})
		}
	}

	out := clusters[:0]
	for _, c := range clusters {
		if len(c) >= MinMACsInCluster {
			out = append(out, c)
		}
	}
	return out
}

// bestCluster picks the largest cluster. Ties go to the better average
// signal, then the smaller spread, then the lowest leading MAC.
func bestCluster(clusters []cluster) cluster {
	if len(clusters) == 0 {
		return nil
	}
	best := clusters[0]
	for _, c := range clusters[1:] {
		switch {
		case len(c) != len(best):
			if len(c) > len(best) {
				best = c
			}
		case c.avgSignal() != best.avgSignal():
			if c.avgSignal() > best.avgSignal() {
				best = c
			}
		case c.spread() != best.spread():
			if c.spread() < best.spread() {
				best = c
			}
		case c[0].mac < best[0].mac:
			best = c
		}
	}
	return best
}

// aggregate computes the signal weighted position of the strongest
// maxNetworks members and an accuracy no smaller than minAccuracy.
func (c cluster) aggregate(maxNetworks int, minAccuracy float64) (lat, lon, accuracy float64) {
	sample := c
	if len(sample) > maxNetworks {
		sample = sample[:maxNetworks]
	}
	pts := make([]geocalc.Point, len(sample))
	weights := make([]float64, len(sample))
	for i, n := range sample {
		pts[i] = geocalc.Point{Lat: n.lat, Lon: n.lon}
		weights[i] = signalWeight(n.signal)
	}
	ctr, err := geocalc.WeightedCentroid(pts, weights)
	if err != nil {
		ctr, _ = geocalc.Centroid(pts)
	}
	box, _ := geocalc.AggregateBox(pts)
	accuracy = math.Max(geocalc.BBoxRadius(ctr, box), minAccuracy)
	return ctr.Lat, ctr.Lon, math.Round(accuracy)
}

// dropSimilar collapses MACs that differ only by a few bits or counts into
// their strongest member. Vendors assign neighbouring addresses to the
// radios of one device, and a handful of those would otherwise look like
// independent agreeing stations.
func dropSimilar(nets []network) []network {
	sorted := make([]network, len(nets))
	copy(sorted, nets)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].signal > sorted[j].signal })

	var out []network
	for _, n := range sorted {
		similar := false
		for _, kept := range out {
			if models.SimilarMACs(n.mac, kept.mac, SimilarMACDistance) {
				similar = true
				break
			}
		}
		if !similar {
			out = append(out, n)
		}
	}
	return out
}

// macProvider answers from Wi-Fi or Bluetooth stations.
type macProvider struct {
	name        string
	stationType models.StationType
	source      StationSource
	maxDistance float64
	maxNetworks int
	minAccuracy float64
	logger      zerolog.Logger
}

// NewWifiProvider answers from the Wi-Fi station tables.
func NewWifiProvider(src StationSource, logger zerolog.Logger) Provider {
	return &macProvider{
		name:        "wifi",
		stationType: models.StationWifi,
		source:      src,
		maxDistance: MaxWifiClusterMeters,
		maxNetworks: MaxWifisInCluster,
		minAccuracy: WifiMinAccuracy,
		logger:      logger,
	}
}

// NewBlueProvider answers from the Bluetooth station tables.
func NewBlueProvider(src StationSource, logger zerolog.Logger) Provider {
	return &macProvider{
		name:        "blue",
		stationType: models.StationBlue,
		source:      src,
		maxDistance: MaxBlueClusterMeters,
		maxNetworks: MaxBluesInCluster,
		minAccuracy: BlueMinAccuracy,
		logger:      logger,
	}
}

func (p *macProvider) Name() string { return p.name }

func (p *macProvider) queries(q *Query) []MACQuery {
	if p.stationType == models.StationBlue {
		return q.Blues
	}
	return q.Wifis
}

func (p *macProvider) ShouldSearch(q *Query, best Outcome) bool {
	if best.Hit && best.Precedence >= PrecedenceMAC {
		return false
	}
	return len(p.queries(q)) >= MinMACsInQuery
}

func (p *macProvider) Search(ctx context.Context, q *Query) Outcome {
	lookups := p.queries(q)
	signals := make(map[string]int, len(lookups))
	for i := range lookups {
		signals[lookups[i].MAC] = lookups[i].SignalOrMissing()
	}

	stations, err := p.source.MACStations(ctx, p.stationType, macList(lookups), q.Now)
	if err != nil {
		p.logger.Warn().Err(err).Str("provider", p.name).Msg("Station lookup failed")
		return Outcome{}
	}
	if len(stations) < MinMACsInQuery {
		return Outcome{}
	}

	nets := make([]network, 0, len(stations))
	for i := range stations {
		st := &stations[i]
		if !st.HasPosition() {
			continue
		}
		nets = append(nets, network{
			mac:    st.MAC,
			lat:    st.Lat,
			lon:    st.Lon,
			signal: signals[st.MAC],
		})
	}
	if len(nets) <= SimilarMACCandidates {
		nets = dropSimilar(nets)
	}

	best := bestCluster(clusterNetworks(nets, p.maxDistance))
	if best == nil {
		return Outcome{}
	}
	lat, lon, accuracy := best.aggregate(p.maxNetworks, p.minAccuracy)
	return positionOutcome(q, PrecedenceMAC, models.Result{
		Lat:      lat,
		Lon:      lon,
		Accuracy: accuracy,
		Source:   models.DataSourceInternal,
	})
}
