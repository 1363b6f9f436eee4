// Package exporter renders panel data as downloadable spreadsheets.
//
// Every export is built as a Table first: a sheet name, headers and string
// rows. A Table is then written either as an Excel workbook through excelize
// or as UTF-8 CSV with a BOM so Excel opens it with the right encoding.
//
// Example usage:
//
//	table := exporter.LicenseTable(licenses, productNames, time.Now())
//	err := exporter.Write(w, exporter.FormatXLSX, table)
package exporter
