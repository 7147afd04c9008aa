package ldb

import "github.com/syndtr/goleveldb/leveldb/opt"

// Options returns the leveldb options used to open a database with a block
// cache of cacheSizeMiB mebibytes. The write buffer is half the cache size.
func Options(cacheSizeMiB int) *opt.Options {
	return &opt.Options{
		Compression:            opt.NoCompression,
		BlockCacheCapacity:     cacheSizeMiB * opt.MiB,
		WriteBuffer:            (cacheSizeMiB * opt.MiB) / 2,
		DisableSeeksCompaction: true,
	}
}
