// Package catalog turns a back end's raw format listing into a normalized
// catalog, reduces it to the quality ladder shown to the user and resolves a
// chosen ladder label back to the concrete stream(s) to download.
//
// Resolution never selects a resolution above the requested label. A combined
// stream is preferred whenever it is at least as tall as the best video-only
// stream that could be merged with audio; otherwise the plan asks for a merge.
package catalog
