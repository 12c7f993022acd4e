package gsim

// builtinModels is the static model table. Requirements follow the published
// model definitions; the period bounds are the coefficient table spans.
var builtinModels = []Model{
	{
		Name:             "AbrahamsonEtAl2014",
		RuptureParams:    []string{"magnitude", "dip", "rake", "depth_top_of_rupture", "rupture_width"},
		SiteParams:       []string{"vs30", "vs30measured", "z1pt0"},
		DistanceMeasures: []string{"rrup", "rjb", "rx", "ry0"},
		Measures:         []string{"PGA", "PGV", "SA"},
		SAPeriods:        &PeriodRange{Min: 0.01, Max: 10},
	},
	{
		Name:             "AkkarEtAlRjb2014",
		RuptureParams:    []string{"magnitude", "rake"},
		SiteParams:       []string{"vs30"},
		DistanceMeasures: []string{"rjb"},
		Measures:         []string{"PGA", "PGV", "SA"},
		SAPeriods:        &PeriodRange{Min: 0.01, Max: 4},
	},
	{
		Name:             "BindiEtAl2014Rjb",
		RuptureParams:    []string{"magnitude", "rake"},
		SiteParams:       []string{"vs30"},
		DistanceMeasures: []string{"rjb"},
		Measures:         []string{"PGA", "PGV", "SA"},
		SAPeriods:        &PeriodRange{Min: 0.02, Max: 3},
	},
	{
		Name:             "BooreEtAl2014",
		RuptureParams:    []string{"magnitude", "rake"},
		SiteParams:       []string{"vs30", "z1pt0"},
		DistanceMeasures: []string{"rjb"},
		Measures:         []string{"PGA", "PGV", "SA"},
		SAPeriods:        &PeriodRange{Min: 0.01, Max: 10},
	},
	{
		Name:             "CampbellBozorgnia2014",
		RuptureParams:    []string{"magnitude", "dip", "rake", "depth_top_of_rupture", "rupture_width", "hypocenter_depth"},
		SiteParams:       []string{"vs30", "z2pt5"},
		DistanceMeasures: []string{"rrup", "rjb", "rx"},
		Measures:         []string{"PGA", "PGV", "SA"},
		SAPeriods:        &PeriodRange{Min: 0.01, Max: 10},
	},
	{
		Name:             "CauzziEtAl2014",
		RuptureParams:    []string{"magnitude", "rake"},
		SiteParams:       []string{"vs30"},
		DistanceMeasures: []string{"rrup"},
		Measures:         []string{"PGA", "PGV", "SA"},
		SAPeriods:        &PeriodRange{Min: 0.01, Max: 10},
	},
	{
		Name:             "ChiouYoungs2014",
		RuptureParams:    []string{"magnitude", "dip", "rake", "depth_top_of_rupture"},
		SiteParams:       []string{"vs30", "vs30measured", "z1pt0"},
		DistanceMeasures: []string{"rrup", "rjb", "rx"},
		Measures:         []string{"PGA", "PGV", "SA"},
		SAPeriods:        &PeriodRange{Min: 0.01, Max: 10},
	},
	{
		Name:             "KothaEtAl2020ESHM20",
		RuptureParams:    []string{"magnitude", "hypocenter_depth"},
		SiteParams:       []string{"vs30"},
		DistanceMeasures: []string{"rjb"},
		Measures:         []string{"PGA", "PGV", "SA"},
		SAPeriods:        &PeriodRange{Min: 0.01, Max: 8},
	},
	{
		Name:             "ZhaoEtAl2006Asc",
		RuptureParams:    []string{"magnitude", "rake", "hypocenter_depth"},
		SiteParams:       []string{"vs30"},
		DistanceMeasures: []string{"rrup"},
		Measures:         []string{"PGA", "SA"},
		SAPeriods:        &PeriodRange{Min: 0.05, Max: 5},
	},
}
