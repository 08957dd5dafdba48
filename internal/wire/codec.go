// Package wire encodes lockstep requests and updates for transport.
//
// A frame is one kind byte followed by a msgpack body. Full snapshots inside
// an update are msgpack encoded and zstd compressed.
package wire

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/hashicorp/go-msgpack/v2/codec"
	"github.com/klauspost/compress/zstd"

	"github.com/vovakirdan/lockstep/internal/lockstep"
)

// Kind identifies the payload of a frame.
type Kind byte

const (
	KindRequest Kind = 1
	KindUpdate  Kind = 2
)

var (
	ErrUnknownFrame = errors.New("wire: unknown frame")
	ErrEmptyFrame   = errors.New("wire: empty frame")
)

var (
	zenc, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	zdec, _ = zstd.NewReader(nil)
)

// Peek returns the kind of a frame without decoding it.
func Peek(frame []byte) (Kind, error) {
	if len(frame) == 0 {
		return 0, ErrEmptyFrame
	}
	switch k := Kind(frame[0]); k {
	case KindRequest, KindUpdate:
		return k, nil
	default:
		return 0, fmt.Errorf("%w: kind %d", ErrUnknownFrame, frame[0])
	}
}

// Codec encodes the messages of one world type. newWorld supplies the value
// a snapshot's world state is decoded into.
type Codec[P, I lockstep.Hashable, T any] struct {
	newWorld func() lockstep.World[P, I, T]
	mh       codec.MsgpackHandle
}

func New[P, I lockstep.Hashable, T any](newWorld func() lockstep.World[P, I, T]) *Codec[P, I, T] {
	c := &Codec[P, I, T]{newWorld: newWorld}
	c.mh.WriteExt = true
	return c
}

func (c *Codec[P, I, T]) marshal(kind Kind, v any) ([]byte, error) {
	out := []byte{byte(kind)}
	body := make([]byte, 0, 64)
	if err := codec.NewEncoderBytes(&body, &c.mh).Encode(v); err != nil {
		return nil, fmt.Errorf("wire: encode: %w", err)
	}
	return append(out, body...), nil
}

func (c *Codec[P, I, T]) unmarshal(kind Kind, frame []byte, v any) error {
	k, err := Peek(frame)
	if err != nil {
		return err
	}
	if k != kind {
		return fmt.Errorf("%w: got kind %d, want %d", ErrUnknownFrame, k, kind)
	}
	if err := codec.NewDecoderBytes(frame[1:], &c.mh).Decode(v); err != nil {
		return fmt.Errorf("wire: decode: %w", err)
	}
	return nil
}

func (c *Codec[P, I, T]) EncodeRequest(req lockstep.Request[I]) ([]byte, error) {
	return c.marshal(KindRequest, requestDTO[I]{
		Window: req.Inputs.SlidingWindow,
		Last:   uint32(req.Inputs.LastInputID),
	})
}

func (c *Codec[P, I, T]) DecodeRequest(frame []byte) (lockstep.Request[I], error) {
	var dto requestDTO[I]
	if err := c.unmarshal(KindRequest, frame, &dto); err != nil {
		return lockstep.Request[I]{}, err
	}
	return lockstep.Request[I]{Inputs: lockstep.InputWindow[I]{
		SlidingWindow: dto.Window,
		LastInputID:   lockstep.InputID(dto.Last),
	}}, nil
}

func (c *Codec[P, I, T]) EncodeUpdate(u lockstep.Update[P, I, T]) ([]byte, error) {
	dto := updateDTO[P, I, T]{
		Applied:  uint32(u.LastAppliedInputID),
		Received: uint32(u.LastReceivedInputID),
		Buffered: u.BufferedInputs,
	}
	if u.Initialization != nil {
		snap, err := c.encodeSnapshot(u.Initialization.Snapshot)
		if err != nil {
			return nil, err
		}
		dto.Init = &initDTO{Player: uint16(u.Initialization.PlayerID), Snapshot: snap}
	}
	tick, err := c.tickToDTO(u.Tick)
	if err != nil {
		return nil, err
	}
	dto.Tick = tick
	return c.marshal(KindUpdate, dto)
}

func (c *Codec[P, I, T]) DecodeUpdate(frame []byte) (lockstep.Update[P, I, T], error) {
	var dto updateDTO[P, I, T]
	if err := c.unmarshal(KindUpdate, frame, &dto); err != nil {
		return lockstep.Update[P, I, T]{}, err
	}
	u := lockstep.Update[P, I, T]{
		LastAppliedInputID:  lockstep.InputID(dto.Applied),
		LastReceivedInputID: lockstep.InputID(dto.Received),
		BufferedInputs:      dto.Buffered,
	}
	if dto.Init != nil {
		snap, err := c.decodeSnapshot(dto.Init.Snapshot)
		if err != nil {
			return u, err
		}
		u.Initialization = &lockstep.Initialization[P, I, T]{
			PlayerID: lockstep.PlayerID(dto.Init.Player),
			Snapshot: snap,
		}
	}
	tick, err := c.tickFromDTO(dto.Tick)
	if err != nil {
		return u, err
	}
	u.Tick = tick
	return u, nil
}

func (c *Codec[P, I, T]) tickToDTO(t lockstep.Tick[P, I, T]) (tickDTO[P, I, T], error) {
	dto := tickDTO[P, I, T]{Checksum: t.Checksum, Inner: t.Inner}
	if t.Complete != nil {
		snap, err := c.encodeSnapshot(t.Complete)
		if err != nil {
			return dto, err
		}
		dto.Complete = snap
	}
	// Sorted so a tick encodes to the same bytes for every peer.
	for _, id := range slices.Sorted(maps.Keys(t.Overwrites)) {
		dto.Overwrites = append(dto.Overwrites, overwriteDTO[P]{ID: uint16(id), Player: t.Overwrites[id]})
	}
	for id, in := range t.Inputs.All() {
		dto.Inputs = append(dto.Inputs, inputDTO[I]{ID: uint16(id), Input: in})
	}
	return dto, nil
}

func (c *Codec[P, I, T]) tickFromDTO(dto tickDTO[P, I, T]) (lockstep.Tick[P, I, T], error) {
	t := lockstep.Tick[P, I, T]{Checksum: dto.Checksum, Inner: dto.Inner}
	if len(dto.Complete) > 0 {
		snap, err := c.decodeSnapshot(dto.Complete)
		if err != nil {
			return t, err
		}
		t.Complete = snap
	}
	if len(dto.Overwrites) > 0 {
		t.Overwrites = make(map[lockstep.PlayerID]*P, len(dto.Overwrites))
		for _, o := range dto.Overwrites {
			if o.ID == 0 {
				return t, errors.New("wire: overwrite for player 0")
			}
			t.Overwrites[lockstep.PlayerID(o.ID)] = o.Player
		}
	}
	for _, in := range dto.Inputs {
		if in.ID == 0 {
			return t, errors.New("wire: input for player 0")
		}
		t.Inputs.Insert(lockstep.PlayerID(in.ID), in.Input)
	}
	return t, nil
}

func (c *Codec[P, I, T]) encodeSnapshot(l *lockstep.Lockstep[P, I, T]) ([]byte, error) {
	var world []byte
	if err := codec.NewEncoderBytes(&world, &c.mh).Encode(l.World); err != nil {
		return nil, fmt.Errorf("wire: encode world: %w", err)
	}
	dto := snapshotDTO[P, I]{TickID: l.Context.TickID, World: world}
	for id, p := range l.Context.Players.All() {
		dto.Players = append(dto.Players, playerDTO[P, I]{ID: uint16(id), Input: p.Input, Inner: p.Inner})
	}
	var raw []byte
	if err := codec.NewEncoderBytes(&raw, &c.mh).Encode(dto); err != nil {
		return nil, fmt.Errorf("wire: encode snapshot: %w", err)
	}
	return zenc.EncodeAll(raw, nil), nil
}

func (c *Codec[P, I, T]) decodeSnapshot(b []byte) (*lockstep.Lockstep[P, I, T], error) {
	raw, err := zdec.DecodeAll(b, nil)
	if err != nil {
		return nil, fmt.Errorf("wire: decompress snapshot: %w", err)
	}
	var dto snapshotDTO[P, I]
	if err := codec.NewDecoderBytes(raw, &c.mh).Decode(&dto); err != nil {
		return nil, fmt.Errorf("wire: decode snapshot: %w", err)
	}
	world := c.newWorld()
	if err := codec.NewDecoderBytes(dto.World, &c.mh).Decode(world); err != nil {
		return nil, fmt.Errorf("wire: decode world: %w", err)
	}
	l := lockstep.New(world)
	l.Context.TickID = dto.TickID
	for _, p := range dto.Players {
		if p.ID == 0 {
			return nil, errors.New("wire: snapshot player 0")
		}
		l.Context.Players.Insert(lockstep.PlayerID(p.ID), lockstep.Player[P, I]{Input: p.Input, Inner: p.Inner})
	}
	return l, nil
}
