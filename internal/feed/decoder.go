package feed

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"arbscope/internal/model"
)

// AccountDecoder turns a venue's raw pool-account bytes into reserve
// numbers. Venues are extended by registering a new decoder for a new
// tag; the feed never inspects payloads generically.
type AccountDecoder interface {
	Venue() string
	DecodeReserves(data []byte) (reserveA, reserveB *big.Int, err error)
}

// LayoutDecoder reads two little-endian u64 reserve words at fixed
// offsets in a venue's pool account layout.
type LayoutDecoder struct {
	venue   string
	offsetA int
	offsetB int
}

// NewLayoutDecoder builds a decoder for the given venue tag and reserve
// word offsets.
func NewLayoutDecoder(venue string, offsetA, offsetB int) *LayoutDecoder {
	return &LayoutDecoder{venue: venue, offsetA: offsetA, offsetB: offsetB}
}

// Reserve word offsets in each venue's pool account layout.
const (
	raydiumReserveAOffset = 192
	raydiumReserveBOffset = 200
	orcaReserveAOffset    = 101
	orcaReserveBOffset    = 181
)

// NewRaydiumDecoder decodes Raydium AMM pool accounts.
func NewRaydiumDecoder() *LayoutDecoder {
	return NewLayoutDecoder(model.VenueRaydium, raydiumReserveAOffset, raydiumReserveBOffset)
}

// NewOrcaDecoder decodes Orca token-swap pool accounts.
func NewOrcaDecoder() *LayoutDecoder {
	return NewLayoutDecoder(model.VenueOrca, orcaReserveAOffset, orcaReserveBOffset)
}

func (d *LayoutDecoder) Venue() string {
	return d.venue
}

func (d *LayoutDecoder) DecodeReserves(data []byte) (*big.Int, *big.Int, error) {
	reserveA, err := readU64(data, d.offsetA)
	if err != nil {
		return nil, nil, fmt.Errorf("%s reserve A: %w", d.venue, err)
	}
	reserveB, err := readU64(data, d.offsetB)
	if err != nil {
		return nil, nil, fmt.Errorf("%s reserve B: %w", d.venue, err)
	}
	return new(big.Int).SetUint64(reserveA), new(big.Int).SetUint64(reserveB), nil
}

func readU64(data []byte, offset int) (uint64, error) {
	if offset < 0 || offset+8 > len(data) {
		return 0, fmt.Errorf("account data too short: need %d bytes, have %d", offset+8, len(data))
	}
	return binary.LittleEndian.Uint64(data[offset : offset+8]), nil
}
