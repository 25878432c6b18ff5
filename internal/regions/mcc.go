// Triangulum - Radio Geolocation and Observation Ingest Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/triangulum

package regions

// mccRegions maps ITU mobile country codes onto region codes. Several codes
// are shared between a country and its territories.
var mccRegions = map[int][]string{
	202: {"GR"},
	204: {"NL"},
	206: {"BE"},
	208: {"FR"},
	214: {"ES"},
	222: {"IT"},
	228: {"CH"},
	232: {"AT"},
	234: {"GB"},
	235: {"GB"},
	238: {"DK"},
	240: {"SE"},
	242: {"NO"},
	244: {"FI"},
	260: {"PL"},
	262: {"DE"},
	268: {"PT"},
	272: {"IE"},
	302: {"CA"},
	310: {"US", "PR", "GU"},
	311: {"US", "PR", "GU"},
	312: {"US", "PR"},
	313: {"US"},
	314: {"US"},
	315: {"US"},
	316: {"US"},
	330: {"PR"},
	334: {"MX"},
	404: {"IN"},
	405: {"IN"},
	406: {"IN"},
	440: {"JP"},
	441: {"JP"},
	450: {"KR"},
	460: {"CN"},
	505: {"AU"},
	530: {"NZ"},
	535: {"GU"},
	602: {"EG"},
	655: {"ZA"},
	722: {"AR"},
	724: {"BR"},
}

// KnownMCC reports whether mcc is in the country code table.
func KnownMCC(mcc int) bool {
	_, ok := mccRegions[mcc]
	return ok
}
