/*
Package patch provides the node contract and kind registry for a live
audio node graph.

A graph is assembled from nodes with typed input and output ports and
executed block by block against an audio stream. Package patch defines
what a node is; graph storage, scheduling and execution live in the
graph, stream, param and engine packages.
*/
package patch
