/*
Package dataset provides a SQLite-backed store of named variable sets for
the tagtpl renderer.

A variable set is a bundle of template assignments (scalars, booleans, and
lists of flat records) persisted as JSON under a unique name. The serving
layer looks a set up by name and binds it into a fresh renderer per
request, keeping template data editable at runtime without code changes.
*/
package dataset
