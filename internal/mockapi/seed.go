package mockapi

import "github.com/five82/licdesk/internal/licensing"

type seedLicense struct {
	domain   string
	customer string
	active   bool
}

var seedLicenses = []seedLicense{
	{"Compulynx", "Compulynx Limited", true},
	{"Flemingo", "Kenya Airport Authority", true},
	{"OTW", "Onn The way", true},
	{"TestDomain", "Test Customer Inc", false},
	{"Way", "The way", false},
	{"SkyNet", "SkyNet Technologies", true},
	{"TechWorld", "TechWorld Solutions", false},
	{"GreenLeaf", "GreenLeaf Organics", true},
	{"BlueWave", "BlueWave Systems", false},
	{"NextGen", "NextGen Innovations", true},
	{"PrimeSoft", "PrimeSoft Global", false},
	{"Sunrise", "Sunrise Retail Ltd", true},
	{"IronClad", "IronClad Security Inc", true},
	{"AeroLink", "AeroLink Airlines", false},
	{"MediCore", "MediCore Healthcare", true},
	{"EduSmart", "EduSmart Academy", false},
	{"RoboX", "RoboX Robotics", true},
	{"UrbanTech", "UrbanTech Developers", true},
	{"EcoFarm", "EcoFarm Produce", false},
	{"TravelX", "TravelX Adventures", true},
}

// Module lines for the first few licenses. The legacy day-month-year dates
// are kept so clients exercise their date normalization.
var seedModules = map[int64][]licensing.ModuleGrant{
	1: {
		{ID: 1, Module: "Merchandising", NumberOfUsers: 2, StartDate: "1-Jan-2025", EndDate: "31-Jan-2026"},
		{ID: 2, Module: "Inventory", NumberOfUsers: 5, StartDate: "1-Jan-2025", EndDate: "31-Jan-2025"},
	},
	2: {
		{ID: 1, Module: "Sales", NumberOfUsers: 10, StartDate: "1-Jan-2025", EndDate: "31-Dec-2025"},
		{ID: 2, Module: "Customer Management", NumberOfUsers: 3, StartDate: "1-Jan-2025", EndDate: "31-Dec-2025"},
	},
	3: {
		{ID: 1, Module: "Inventory", NumberOfUsers: 1, StartDate: "1-Jan-2025", EndDate: "30-Jun-2025"},
	},
}

var seedCatalog = []string{
	"Merchandising",
	"Inventory",
	"Sales",
	"Purchasing",
	"Accounting",
	"HR Management",
	"Customer Management",
	"Reporting",
	"Analytics",
	"Security Management",
}

const seedSerialBase int64 = 100000
