/*
Package tagtpl implements a string-based template renderer built around
bracket tags of the form [tag::NAME].

A Renderer owns a data store of named values (scalars, booleans, or lists
of flat records) and rewrites a template string in five ordered passes:
variable substitution, block/loop expansion, snippet execution, file
inclusion, and conditional evaluation. Each pass fully consumes the output
of the previous one; a tag produced by a later construct but written in an
earlier pass's syntax is never reprocessed.

Rendering never fails. Unknown placeholders are left verbatim, blocks with
no bound data pass through untouched, and snippet, include, and condition
failures are folded into the output as HTML-escaped inline diagnostics.

Snippets and condition expressions run through an injectable Evaluator
with full host expressiveness and no sandboxing; the template author is
trusted. Deployments that need a restricted expression language can swap
in their own Evaluator without touching the pipeline.
*/
package tagtpl
