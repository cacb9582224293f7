package utils

import (
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/scythe504/spyroom-backend/internal"
)

// ReadLocationsCSV parses "nameKey,role1|role2|..." records.
// Malformed rows are skipped, an empty result is an error.
func ReadLocationsCSV(r io.Reader) ([]internal.Location, error) {
	csvReader := csv.NewReader(r)
	csvReader.Comment = '#'
	csvReader.FieldsPerRecord = -1

	records, err := csvReader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse locations csv: %w", err)
	}

	var locations []internal.Location

	for _, record := range records {
		if len(record) < 2 {
			log.Println("Skipping invalid location record: ", record)
			continue
		}
		nameKey := strings.TrimSpace(record[0])
		if nameKey == "" {
			log.Println("Skipping location without name key: ", record)
			continue
		}

		roles := make([]string, 0)
		for _, role := range strings.Split(record[1], "|") {
			if role = strings.TrimSpace(role); role != "" {
				roles = append(roles, role)
			}
		}
		if len(roles) == 0 {
			log.Println("Skipping location without roles: ", record)
			continue
		}

		locations = append(locations, internal.Location{
			NameKey: nameKey,
			Roles:   roles,
		})
	}

	if len(locations) == 0 {
		return nil, fmt.Errorf("no valid locations found")
	}
	return locations, nil
}
