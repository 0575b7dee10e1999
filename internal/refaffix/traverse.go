package refaffix

import "folio/internal/jsontree"

// Transform applies the engine across a decoded JSON tree and returns the
// root. Targeting follows jsontree.RewriteStrings: no targets means every
// string leaf, otherwise each path is tried as given and with the "record."
// wrapper toggled.
func (e *Engine) Transform(data any, targets []string) any {
	return jsontree.RewriteStrings(data, targets, e.Apply)
}
