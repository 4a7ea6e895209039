package ingest

import "fmt"

// Columns maps storage column names to values for a single insert. Absent
// optional fields are present with a nil value so the insert statement stays
// positionally stable.
type Columns map[string]any

// Transform maps a validated cleaned record to the storage column contract
// for its shape. It is pure and deterministic: renames canonical fields,
// coerces single strings into array columns where the store expects arrays,
// substitutes nil for absent optionals, attaches rowID only for shapes whose
// contract has a row_id column, and injects the resolved harbour id.
//
// This mapping is defined centrally because drift between the cleaner's
// vocabulary and the column contract silently loses data.
func Transform(rec *CleanedRecord, harbourID string, rowID string) (Columns, error) {
	switch rec.Shape {
	case ShapeQnA:
		cols := Columns{
			"question":   rec.QnA.Question,
			"answer":     rec.QnA.Answer,
			"harbour_id": harbourID,
			"category":   rec.QnA.Category,
			"tier":       string(rec.QnA.Tier),
			"tags":       tagsOrEmpty(rec.QnA.Tags),
			"row_id":     nullableString(rowID),
		}
		return cols, nil

	case ShapeHarbour:
		cols := Columns{
			"name":        rec.Harbour.Name,
			"island":      rec.Harbour.Island,
			"lat":         rec.Harbour.Lat,
			"lon":         rec.Harbour.Lon,
			"description": rec.Harbour.Description,
			"facilities":  tagsOrEmpty(rec.Harbour.Facilities),
			"vhf_channel": nullableString(rec.Harbour.VHFChannel),
		}
		return cols, nil

	case ShapeWeather:
		// The store keeps wind directions as an array so later profiles can
		// accumulate more directions on the same row.
		cols := Columns{
			"harbour_id":      harbourID,
			"wind_directions": []string{rec.Weather.WindDirection},
			"shelter_quality": rec.Weather.ShelterQuality,
			"notes":           rec.Weather.Notes,
		}
		return cols, nil

	case ShapeMedia:
		cols := Columns{
			"harbour_id": harbourID,
			"media_type": rec.Media.MediaType,
			"caption":    rec.Media.Caption,
			"url":        nullableString(rec.Media.URL),
			"row_id":     nullableString(rowID),
		}
		return cols, nil
	}

	return nil, fmt.Errorf("ingest: transform: unknown shape %q", rec.Shape)
}

// nullableString maps the empty string to nil for nullable text columns.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// tagsOrEmpty normalises a nil slice to an empty array column value.
func tagsOrEmpty(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
