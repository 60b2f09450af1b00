package domain

type Decompressor interface {
	Decompress(sourcePath, destPath string) error
}
