// Package proto implements the device protocol's sentence-level semantics
// on top of the raw word framing in pkg/wire: classifying the first word of
// a sentence as a request or reply token, parsing attribute (=k=v) and
// filter (?k=v) words, the .proplist projection attribute, and synthesizing
// the reply sentences (!re/!done/!trap) the handler sends back to clients.
package proto
