// Package dag is a small directed graph of node names used to check a
// locally assembled graph for dependency cycles and to render graphs as DOT.
package dag
