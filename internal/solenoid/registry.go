package solenoid

import "fmt"

type board struct {
	addr uint8
	dev  Expander
	// mask is the pending hardware register: the last value written to the
	// output port, kept so single-pin updates and bulk writes need no reads.
	mask uint8
}

// registry translates flat channel indexes into board/pin pairs and batches
// output writes through a cached mask per board.
type registry struct {
	boards [MaxBoards]board
	count  int
}

// Locate splits a flat channel index into its board and pin.
func Locate(ch Channel) (boardIdx, pin uint8) {
	return uint8(ch) / ChannelsPerBoard, uint8(ch) % ChannelsPerBoard
}

func (r *registry) reset() {
	r.boards = [MaxBoards]board{}
	r.count = 0
}

func (r *registry) add(addr uint8, dev Expander) {
	r.boards[r.count] = board{addr: addr, dev: dev}
	r.count++
}

func (r *registry) valid(b uint8) bool { return int(b) < r.count }

func (r *registry) channels() int { return r.count * ChannelsPerBoard }

func (r *registry) mask(b uint8) uint8 {
	if !r.valid(b) {
		return 0
	}
	return r.boards[b].mask
}

func (r *registry) address(b uint8) uint8 {
	if !r.valid(b) {
		return 0
	}
	return r.boards[b].addr
}

// writePin updates one cached bit and issues a single-pin write. The cache
// is only committed once the write succeeds.
func (r *registry) writePin(b, pin uint8, on bool) error {
	if !r.valid(b) || pin >= ChannelsPerBoard {
		return fmt.Errorf("board %d pin %d out of range", b, pin)
	}
	bd := &r.boards[b]
	if err := bd.dev.WritePin(pin, on); err != nil {
		return err
	}
	if on {
		bd.mask |= 1 << pin
	} else {
		bd.mask &^= 1 << pin
	}
	return nil
}

// writePort replaces the board's mask with one bulk write.
func (r *registry) writePort(b, mask uint8) error {
	if !r.valid(b) {
		return fmt.Errorf("board %d out of range", b)
	}
	bd := &r.boards[b]
	if err := bd.dev.WritePort(mask); err != nil {
		return err
	}
	bd.mask = mask
	return nil
}

// forcePort writes mask without consulting the cache and records it even if
// the write fails. Emergency stop relies on this to never skip a board.
func (r *registry) forcePort(b, mask uint8) error {
	if !r.valid(b) {
		return fmt.Errorf("board %d out of range", b)
	}
	bd := &r.boards[b]
	bd.mask = mask
	if bd.dev == nil {
		return fmt.Errorf("board %d has no device", b)
	}
	return bd.dev.WritePort(mask)
}

func (r *registry) readPort(b uint8) (uint8, error) {
	if !r.valid(b) {
		return 0, fmt.Errorf("board %d out of range", b)
	}
	return r.boards[b].dev.ReadPort()
}
