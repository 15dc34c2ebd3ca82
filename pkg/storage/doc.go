// Package storage writes harvested records to a CSV file.
//
// The header row is the configured field list; each record becomes one row
// with its values rendered by models.FormatValue and a missing field left
// empty. Quoting follows encoding/csv.
//
//	w, err := storage.NewWriter([]string{"tags", "views"}, log, nil)
//	if err != nil {
//		return err
//	}
//	err = w.WriteFile("images.csv", records)
//
// All failures are *errors.Error values of type destination.
package storage
