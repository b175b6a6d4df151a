package extractor

// Extractor is the archive reader handed to the unpacker. Format detection is
// left to archive/zip, which also opens archives carrying a prefix stub.
type Extractor struct {
	zip *ZIPExtractor
}

func New(opts ...ZIPOption) *Extractor {
	return &Extractor{
		zip: NewZIP(opts...),
	}
}

func (e *Extractor) Extract(src, dst string) error {
	return e.zip.Extract(src, dst)
}

func (e *Extractor) List(src string) ([]Entry, error) {
	return e.zip.List(src)
}

func (e *Extractor) Size(src string) (int64, error) {
	return e.zip.Size(src)
}
