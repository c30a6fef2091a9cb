package tiploc

type station struct {
	code string
	lat  float64
	lon  float64
	name string
}

// defaultStations covers the major UK stations so the map is usable
// before any coordinates have been imported or upserted.
var defaultStations = []station{
	{"LONDON", 51.5074, -0.1278, "London"},
	{"KNGX", 51.5308, -0.1238, "Kings Cross"},
	{"EUSTON", 51.5282, -0.1337, "Euston"},
	{"PADTON", 51.5154, -0.1755, "Paddington"},
	{"VICTRIC", 51.4952, -0.1441, "Victoria"},
	{"WLOO", 51.5031, -0.1132, "Waterloo"},
	{"STPANCI", 51.5308, -0.1260, "St Pancras"},
	{"MARYLBN", 51.5226, -0.1633, "Marylebone"},
	{"LIVST", 51.5154, -0.0811, "Liverpool Street"},
	{"CLPHMJC", 51.4640, -0.1700, "Clapham Junction"},
	{"STRATFD", 51.5418, -0.0030, "Stratford"},
	{"CRLN", 51.4863, 0.0361, "Charlton"},
	{"WOLWCDY", 51.4909, 0.0540, "Woolwich Dockyard"},
	{"WOLWCHA", 51.4916, 0.0694, "Woolwich Arsenal"},
	{"BRMNGM", 52.4862, -1.8904, "Birmingham"},
	{"MNCHSTR", 53.4808, -2.2426, "Manchester"},
	{"EDINBGH", 55.9533, -3.1883, "Edinburgh"},
	{"GLGW", 55.8642, -4.2518, "Glasgow"},
	{"LEEDS", 53.7957, -1.5491, "Leeds"},
	{"SHEFFLD", 53.3781, -1.4896, "Sheffield"},
	{"NWCSTLE", 54.9689, -1.6176, "Newcastle"},
	{"YORK", 53.9576, -1.0827, "York"},
	{"BRISTOL", 51.4491, -2.5820, "Bristol"},
	{"CARDIFF", 51.4816, -3.1791, "Cardiff"},
	{"NOTTGHM", 52.9476, -1.1461, "Nottingham"},
	{"LEICSTR", 52.6309, -1.1238, "Leicester"},
	{"DERBY", 52.9225, -1.4761, "Derby"},
	{"READING", 51.4584, -0.9738, "Reading"},
	{"OXFORD", 51.7535, -1.2700, "Oxford"},
	{"CAMBRIDGE", 52.1951, 0.1313, "Cambridge"},
	{"BRIGHTON", 50.8429, -0.1313, "Brighton"},
	{"SOUTHAMPTON", 50.9097, -1.4044, "Southampton"},
	{"PORTSMOUTH", 50.7984, -1.0916, "Portsmouth"},
	{"EXETER", 50.7236, -3.5269, "Exeter"},
	{"PLYMOUTH", 50.3755, -4.1427, "Plymouth"},
	{"ABERDEEN", 57.1497, -2.0943, "Aberdeen"},
	{"DUNDEE", 56.4620, -2.9707, "Dundee"},
	{"INVERNESS", 57.4778, -4.2247, "Inverness"},
	{"SWANSEA", 51.6214, -3.9436, "Swansea"},
	{"TUTBURY", 52.8730, -1.6870, "Tutbury & Hatton"},
	{"GATWICK", 51.1537, -0.1821, "Gatwick Airport"},
	{"HEATHROW", 51.4700, -0.4543, "Heathrow Airport"},
}
