// Package history reads and writes Noddy model history (.his) files.
//
// A history is a sequence of numbered events ("Event #2 = FOLD"), each
// followed by indented "Name = value" property lines. Only numeric properties
// are exposed as parameters; everything else passes through untouched:
//
//	h, _ := history.ReadFile("foldUC.his")
//	_ = h.Set("2", "Dip", 47.5)
//	_ = h.WriteFile("out_0001.his")
//
// Histories are mutated in place. Concurrent workers must each take a Clone.
package history
