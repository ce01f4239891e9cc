/*
Package address provides the Path type used to address values in the
runtime's state: an ordered sequence of string segments such as
["summarize", "text"].

Paths are compared segment by segment. When a path must be used as a map
key it is joined with a delimiter, ":" by default, e.g. `summarize:text`.
*/
package address
