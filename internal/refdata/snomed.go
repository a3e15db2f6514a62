package refdata

// SpecimenSNOMEDSynonyms maps known specimen-name synonyms, lowercase,
// to their SNOMED codes. It is the compiled-in fallback half of the
// specimen code map: database rows override these entries during cache
// builds, the table only fills gaps.
var SpecimenSNOMEDSynonyms = map[string]string{
	"swab of internal nose":                 "445297001",
	"nasal swab":                            "445297001",
	"nasal":                                 "445297001",
	"varied":                                "445297001",
	"nasopharyngeal swab":                   "258500001",
	"mid-turbinate nasal swab":              "871810001",
	"anterior nares swab":                   "697989009",
	"anterior nasal swab":                   "697989009",
	"nasopharyngeal aspirate":               "258411007",
	"nasopharyngeal washings":               "258467004",
	"nasopharyngeal wash":                   "258467004",
	"nasal aspirate":                        "429931000124105",
	"nasal aspirate specimen":               "429931000124105",
	"throat swab":                           "258529004",
	"oropharyngeal swab":                    "258529004",
	"oral swab":                             "418932006",
	"sputum specimen":                       "119334006",
	"sputum":                                "119334006",
	"saliva specimen":                       "258560004",
	"saliva":                                "258560004",
	"serum specimen":                        "119364003",
	"serum":                                 "119364003",
	"plasma specimen":                       "119361006",
	"plasma":                                "119361006",
	"whole blood sample":                    "258580003",
	"whole blood":                           "258580003",
	"venous blood specimen":                 "122555007",
	"venous whole blood":                    "122555007",
	"blood specimen":                        "119297000",
	"capillary blood specimen":              "122554006",
	"fingerstick whole blood":               "122554006",
	"dried blood spot specimen":             "440500007",
	"dried blood spot":                      "440500007",
	"fingerstick blood dried blood spot":    "440500007",
	"nasopharyngeal and oropharyngeal swab": "433801000124107",
	"nasal and throat swab combination":     "433801000124107",
	"nasal and throat swab":                 "433801000124107",
	"lower respiratory fluid sample":        "309171007",
	"lower respiratory tract aspirates":     "309171007",
	"bronchoalveolar lavage fluid sample":   "258607008",
	"bronchoalveolar lavage fluid":          "258607008",
	"bronchoalveolar lavage":                "258607008",
}
