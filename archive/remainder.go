package archive

import (
	"io"

	"github.com/n-peugnet/diffkitchen/compress/zlibutil"
	dkio "github.com/n-peugnet/diffkitchen/ioutil"
	"github.com/n-peugnet/diffkitchen/prepared"
)

// decompressRemainder inflates the archive's zlib-raw-compressed remainder
// stream in full (spec.md §4.8, "remainder is stored zlib-raw at level 9").
// Its uncompressed length is not recorded on the wire — unlike every other
// item, it is only known once inflation completes — so this runs eagerly
// at stocking time rather than lazily like the other prepared-item
// factories.
func decompressRemainder(raw []byte) (prepared.Item, error) {
	src := dkio.NewReaderWrapper(dkio.NewBytesReader(raw))
	dr, err := zlibutil.NewDecompressingReader(src, zlibutil.Raw)
	if err != nil {
		return nil, err
	}
	buf, err := io.ReadAll(dr)
	if err != nil {
		return nil, err
	}
	return prepared.FromReaderFactory(int64(len(buf)), func() (dkio.Reader, error) {
		return dkio.NewBytesReader(buf), nil
	}), nil
}
