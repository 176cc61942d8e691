package domain

// FetchRequest asks the downloader to place one URL at a local path.
type FetchRequest struct {
	URL  string
	Dest string
	// Expected, when set, lets the downloader skip the request if Dest already matches.
	Expected *Checksum
	// Size, when set, is checked against the bytes received.
	Size *int64
}

// FetchResult reports what the downloader did.
type FetchResult struct {
	// Downloaded is false when an existing file already matched and no request was made.
	Downloaded bool
	Bytes      int64
	Attempts   int
}
