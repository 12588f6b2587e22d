package port

// Walker discovers files under a root directory.
type Walker interface {
	Walk(root string) ([]FileInfo, error)
}

// FileInfo describes a discovered file.
type FileInfo struct {
	Path    string
	ModTime int64
	Size    int64
}
