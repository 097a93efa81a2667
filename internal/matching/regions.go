package matching

import "github.com/xaenox/ishbor-bot/internal/models"

// Region ids of the marketplace, one per Uzbek region.
const (
	RegionTashkentCity int64 = iota + 1
	RegionTashkent
	RegionAndijan
	RegionBukhara
	RegionFergana
	RegionJizzakh
	RegionKhorezm
	RegionNamangan
	RegionNavoi
	RegionKashkadarya
	RegionKarakalpakstan
	RegionSamarkand
	RegionSyrdarya
	RegionSurkhandarya
)

// Region describes one region for keyboards and channel routing.
type Region struct {
	ID   int64
	Slug string
	Uz   string
	Ru   string
}

var Regions = []Region{
	{RegionTashkentCity, "toshkent-shahri", "Toshkent shahri", "г. Ташкент"},
	{RegionTashkent, "toshkent", "Toshkent viloyati", "Ташкентская область"},
	{RegionAndijan, "andijon", "Andijon", "Андижан"},
	{RegionBukhara, "buxoro", "Buxoro", "Бухара"},
	{RegionFergana, "fargona", "Farg'ona", "Фергана"},
	{RegionJizzakh, "jizzax", "Jizzax", "Джизак"},
	{RegionKhorezm, "xorazm", "Xorazm", "Хорезм"},
	{RegionNamangan, "namangan", "Namangan", "Наманган"},
	{RegionNavoi, "navoiy", "Navoiy", "Навои"},
	{RegionKashkadarya, "qashqadaryo", "Qashqadaryo", "Кашкадарья"},
	{RegionKarakalpakstan, "qoraqalpogiston", "Qoraqalpog'iston", "Каракалпакстан"},
	{RegionSamarkand, "samarqand", "Samarqand", "Самарканд"},
	{RegionSyrdarya, "sirdaryo", "Sirdaryo", "Сырдарья"},
	{RegionSurkhandarya, "surxondaryo", "Surxondaryo", "Сурхандарья"},
}

func (r Region) Name() models.Text {
	return models.Text{Uz: r.Uz, Ru: r.Ru}
}

// neighborPairs lists regions sharing a border. Each pair is stored once
// and applies in both directions.
var neighborPairs = [][2]int64{
	{RegionTashkentCity, RegionTashkent},
	{RegionTashkent, RegionSyrdarya},
	{RegionTashkent, RegionNamangan},
	{RegionAndijan, RegionNamangan},
	{RegionAndijan, RegionFergana},
	{RegionFergana, RegionNamangan},
	{RegionBukhara, RegionNavoi},
	{RegionBukhara, RegionKashkadarya},
	{RegionBukhara, RegionKhorezm},
	{RegionBukhara, RegionKarakalpakstan},
	{RegionJizzakh, RegionSyrdarya},
	{RegionJizzakh, RegionSamarkand},
	{RegionJizzakh, RegionNavoi},
	{RegionKhorezm, RegionKarakalpakstan},
	{RegionNavoi, RegionSamarkand},
	{RegionNavoi, RegionKarakalpakstan},
	{RegionNavoi, RegionKashkadarya},
	{RegionKashkadarya, RegionSamarkand},
	{RegionKashkadarya, RegionSurkhandarya},
}

var neighbors = buildNeighbors(neighborPairs)

func buildNeighbors(pairs [][2]int64) map[int64]map[int64]bool {
	out := make(map[int64]map[int64]bool)
	add := func(a, b int64) {
		if out[a] == nil {
			out[a] = make(map[int64]bool)
		}
		out[a][b] = true
	}
	for _, p := range pairs {
		add(p[0], p[1])
		add(p[1], p[0])
	}
	return out
}

// Adjacent reports whether two distinct regions share a border.
func Adjacent(a, b int64) bool {
	return a != b && neighbors[a][b]
}

// RegionByID finds a region, reporting false for unknown ids.
func RegionByID(id int64) (Region, bool) {
	for _, r := range Regions {
		if r.ID == id {
			return r, true
		}
	}
	return Region{}, false
}

// RegionBySlug finds a region by its channel slug.
func RegionBySlug(slug string) (Region, bool) {
	for _, r := range Regions {
		if r.Slug == slug {
			return r, true
		}
	}
	return Region{}, false
}

// District is a city district offered as a finer location choice.
type District struct {
	ID       int64
	RegionID int64
	Uz       string
	Ru       string
}

func (d District) Name() models.Text {
	return models.Text{Uz: d.Uz, Ru: d.Ru}
}

// Districts are known only for the capital; elsewhere the region is the
// finest location the wizards ask for.
var Districts = []District{
	{101, RegionTashkentCity, "Bektemir", "Бектемир"},
	{102, RegionTashkentCity, "Chilonzor", "Чиланзар"},
	{103, RegionTashkentCity, "Mirobod", "Мирабад"},
	{104, RegionTashkentCity, "Mirzo Ulug'bek", "Мирзо-Улугбек"},
	{105, RegionTashkentCity, "Olmazor", "Алмазар"},
	{106, RegionTashkentCity, "Sergeli", "Сергели"},
	{107, RegionTashkentCity, "Shayxontohur", "Шайхантахур"},
	{108, RegionTashkentCity, "Uchtepa", "Учтепа"},
	{109, RegionTashkentCity, "Yakkasaroy", "Яккасарай"},
	{110, RegionTashkentCity, "Yashnobod", "Яшнабад"},
	{111, RegionTashkentCity, "Yunusobod", "Юнусабад"},
	{112, RegionTashkentCity, "Yangihayot", "Янгихаёт"},
}

// DistrictsOf lists the districts of a region, possibly none.
func DistrictsOf(regionID int64) []District {
	var out []District
	for _, d := range Districts {
		if d.RegionID == regionID {
			out = append(out, d)
		}
	}
	return out
}

func DistrictByID(id int64) (District, bool) {
	for _, d := range Districts {
		if d.ID == id {
			return d, true
		}
	}
	return District{}, false
}
