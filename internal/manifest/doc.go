// Package manifest declares graph nodes from HCL files.
//
//	prompt "A" {
//	  template = "Hello"
//	}
//
//	custom "B" {
//	  type_name = "summarize"
//	  output    = object({ text = string })
//	  run_when  = [A]
//	}
//
// Block types are prompt, custom, code and vector_memory, each labelled with
// the node name. Every block accepts queries, output, output_tables and
// run_when. The output schema may be written as a type expression or as a
// string holding one. run_when entries are node names, bare or quoted.
//
// All blocks of all files are declared before any run_when is wired, so
// the order of blocks and files does not matter.
package manifest
