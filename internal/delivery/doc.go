// Package delivery decides how an artifact travels over a transport with a
// per-message size limit and sends it.
//
// The Splitter turns an artifact into delivery units: the whole file when it
// fits the limit, otherwise numbered sibling part files of at most the part
// size. The Sender pushes units in order, retrying transient transport
// failures a bounded number of times with a constant delay, deleting each
// part once it is delivered and aborting the sequence on the first failure.
package delivery
