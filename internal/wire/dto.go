package wire

// The DTOs mirror the lockstep types with flat slices in place of maps and
// interfaces, so msgpack can decode them without knowing the world type.

type requestDTO[I any] struct {
	Window []I    `codec:"w"`
	Last   uint32 `codec:"l"`
}

type initDTO struct {
	Player   uint16 `codec:"p"`
	Snapshot []byte `codec:"s"`
}

type updateDTO[P, I, T any] struct {
	Init     *initDTO         `codec:"i,omitempty"`
	Applied  uint32           `codec:"a"`
	Received uint32           `codec:"r"`
	Tick     tickDTO[P, I, T] `codec:"t"`
	Buffered int              `codec:"b"`
}

type tickDTO[P, I, T any] struct {
	Checksum   *uint32           `codec:"c,omitempty"`
	Complete   []byte            `codec:"x,omitempty"`
	Overwrites []overwriteDTO[P] `codec:"o,omitempty"`
	Inputs     []inputDTO[I]     `codec:"n,omitempty"`
	Inner      T                 `codec:"p"`
}

type overwriteDTO[P any] struct {
	ID     uint16 `codec:"id"`
	Player *P     `codec:"p"`
}

type inputDTO[I any] struct {
	ID    uint16 `codec:"id"`
	Input I      `codec:"in"`
}

type playerDTO[P, I any] struct {
	ID    uint16 `codec:"id"`
	Input I      `codec:"in"`
	Inner P      `codec:"p"`
}

type snapshotDTO[P, I any] struct {
	TickID  uint32            `codec:"t"`
	Players []playerDTO[P, I] `codec:"ps"`
	World   []byte            `codec:"w"`
}
