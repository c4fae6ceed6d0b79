package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// FoldHistory is a small two-event Noddy history used across package tests.
const FoldHistory = `#Filename = foldUC.his
#Date Saved = 12/3/2014 15:42:11
FileType = 111
Version = 7.11

No of Events	= 2
Event #1	= STRATIGRAPHY
	Num Layers	= 2
	Unit Name	= Base
	Height	= 0
	Density	= 2.70e+00
	Unit Name	= Cover
	Height	= 2000
	Density	= 2.40e+00
Event #2	= FOLD
	Type	= Sine
	Single Fold	= FALSE
	X	= 0.00
	Y	= 0.00
	Z	= 0.00
	Dip Direction	= 90.00
	Dip	= 45.00
	Pitch	= 0.00
	Wavelength	= 4000.00
	Amplitude	= 500.00
	Cylindricity	= 0.00
#BlockOptions
	Number of Views	= 1
	Current View	= 0
`

// WriteFoldHistory writes FoldHistory into dir and returns its path.
func WriteFoldHistory(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "foldUC.his")
	if err := os.WriteFile(path, []byte(FoldHistory), 0644); err != nil {
		t.Fatalf("write history fixture: %v", err)
	}
	return path
}
