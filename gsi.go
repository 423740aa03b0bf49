package demmosaic

import (
	"path"
	"strings"
)

// IsDEMDocumentName reports whether a filename plausibly names an FGD
// DEM document. Metadata and index files that ship alongside the tiles
// are excluded; everything else that ends in .xml passes and is settled
// by a head sniff.
func IsDEMDocumentName(name string) bool {
	n := strings.ToLower(path.Base(name))
	if !strings.HasSuffix(n, ".xml") {
		return false
	}
	if strings.HasPrefix(n, "fmdid") || strings.Contains(n, "metadata") || strings.HasSuffix(n, "_index.xml") {
		return false
	}
	return true
}

// LooksLikeDEMDocument reports whether the head of a document contains
// any of the markers of an FGD DEM payload.
func LooksLikeDEMDocument(head []byte) bool {
	h := string(head)
	return strings.Contains(h, "<DEM") ||
		strings.Contains(h, "ElevationModel") ||
		strings.Contains(h, "tupleList") ||
		strings.Contains(h, "doubleOrNilReasonTupleList")
}

// MeshCode extracts the mesh code from an FG-GML DEM filename, for
// example "5339-45" from "FG-GML-5339-45-DEM5A-20161001.xml". It returns
// "" when the filename does not follow the convention.
func MeshCode(filename string) string {
	base := path.Base(filename)
	upper := strings.ToUpper(base)
	if !strings.HasPrefix(upper, "FG-GML-") {
		return ""
	}
	rest := upper[len("FG-GML-"):]
	i := strings.Index(rest, "-DEM")
	if i <= 0 {
		return ""
	}
	return rest[:i]
}
