// Package gazetteer joins the GeoNames places dump with the alternate-names
// dump into one localized row per place.
package gazetteer

// Row is one output record.
type Row struct {
	DefaultName   string
	LocalizedName string
	CountryCode   string
	Lat           string
	Lon           string
}

// Record returns the row in output column order.
func (r Row) Record() []string {
	return []string{r.DefaultName, r.LocalizedName, r.CountryCode, r.Lat, r.Lon}
}

// Header returns the output header for the two locales, e.g.
// name_en,name_ko,country_code,lat,lon.
func Header(defaultLocale, targetLocale string) []string {
	return []string{"name_" + defaultLocale, "name_" + targetLocale, "country_code", "lat", "lon"}
}

// Assemble pairs every place with its localized name, falling back to the
// default name. Order and duplicates are kept as given.
func Assemble(places []Place, names map[string]string) []Row {
	rows := make([]Row, 0, len(places))
	for _, p := range places {
		local, ok := names[p.ID]
		if !ok {
			local = p.Name
		}
		rows = append(rows, Row{
			DefaultName:   p.Name,
			LocalizedName: local,
			CountryCode:   p.CountryCode,
			Lat:           p.Lat,
			Lon:           p.Lon,
		})
	}
	return rows
}

// Records converts rows for the CSV writer.
func Records(rows []Row) [][]string {
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = r.Record()
	}
	return out
}
