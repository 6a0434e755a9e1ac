package replication

import (
	"github.com/klauspost/compress/zstd"
)

// BatchCompressor кодирует/декодирует пакет изменений в компактный вид.
type BatchCompressor interface {
	Compress(changes []Change) ([]byte, error)
	Decompress(payload []byte) ([]Change, error)
}

type passthroughCompressor struct{}

// NewPassthroughCompressor возвращает компрессор без сжатия
func NewPassthroughCompressor() BatchCompressor { return &passthroughCompressor{} }

func (p *passthroughCompressor) Compress(changes []Change) ([]byte, error) {
	// очень простой формат: [len(uint32)] [data] ...
	buf := make([]byte, 0)
	for _, c := range changes {
		n := uint32(len(c.Data))
		buf = append(buf, byte(n>>24), byte(n>>16), byte(n>>8), byte(n))
		buf = append(buf, c.Data...)
	}
	return buf, nil
}

func (p *passthroughCompressor) Decompress(payload []byte) ([]Change, error) {
	var res []Change
	i := 0
	for i < len(payload) {
		if i+4 > len(payload) {
			break // повреждённый хвост игнорируем
		}
		n := uint32(payload[i])<<24 | uint32(payload[i+1])<<16 | uint32(payload[i+2])<<8 | uint32(payload[i+3])
		i += 4
		if i+int(n) > len(payload) {
			break
		}
		res = append(res, Change{Data: payload[i : i+int(n)]})
		i += int(n)
	}
	return res, nil
}

// zstdCompressor сжимает сериализованный пакет через zstd.
// Снимки сущностей однообразны, поэтому сжимаются очень хорошо.
type zstdCompressor struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

// NewZstdCompressor создаёт компрессор zstd со скоростным профилем
func NewZstdCompressor() (BatchCompressor, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	return &zstdCompressor{enc: enc, dec: dec}, nil
}

func (z *zstdCompressor) Compress(changes []Change) ([]byte, error) {
	passthrough := &passthroughCompressor{}
	raw, err := passthrough.Compress(changes)
	if err != nil {
		return nil, err
	}
	return z.enc.EncodeAll(raw, nil), nil
}

func (z *zstdCompressor) Decompress(payload []byte) ([]Change, error) {
	raw, err := z.dec.DecodeAll(payload, nil)
	if err != nil {
		return nil, err
	}
	passthrough := &passthroughCompressor{}
	return passthrough.Decompress(raw)
}
