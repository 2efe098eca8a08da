package domain

import (
	"fmt"
	"strconv"
	"strings"

	"live_analysis/internal/errors"
)

type Color string

const (
	Black Color = "B"
	White Color = "W"
)

func (c Color) Valid() bool {
	return c == Black || c == White
}

type Stone struct {
	X     int   `json:"x" validate:"gte=0"`
	Y     int   `json:"y" validate:"gte=0"`
	Color Color `json:"color" validate:"oneof=B W"`
}

// Position is an immutable snapshot of the position source. X grows to the right and
// Y grows downwards from the top-left corner, as on the rendered board.
type Position struct {
	GameID     string  `json:"game_id"`
	NodeID     string  `json:"node_id" validate:"required"`
	MoveNumber int     `json:"move_number" validate:"gte=0"`
	ToMove     Color   `json:"to_move" validate:"oneof=B W"`
	BoardXSize int     `json:"board_x_size" validate:"gte=0,lte=25"`
	BoardYSize int     `json:"board_y_size" validate:"gte=0,lte=25"`
	Komi       float64 `json:"komi"`
	Rules      string  `json:"rules"`
	Stones     []Stone `json:"stones" validate:"dive"`
}

func (p Position) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("%w: position: %v", errors.ErrConfigValidation, err)
	}
	return nil
}

func (p Position) Clone() Position {
	out := p
	out.Stones = append([]Stone(nil), p.Stones...)
	return out
}

// IsWhiteToMove reports whether the second player is to move.
func (p Position) IsWhiteToMove() bool {
	return p.ToMove == White
}

const gtpColumns = "ABCDEFGHJKLMNOPQRSTUVWXYZ"

// GTPCoord converts a board point into engine notation, e.g. (3, 15) on 19x19 is "D4".
func GTPCoord(x, y, boardYSize int) (string, error) {
	if x < 0 || x >= len(gtpColumns) || y < 0 || y >= boardYSize {
		return "", fmt.Errorf("координата выходит за пределы доски: (%d,%d)", x, y)
	}
	return fmt.Sprintf("%c%d", gtpColumns[x], boardYSize-y), nil
}

// ParseGTPCoord is the inverse of GTPCoord. Passes are reported with ok=false.
func ParseGTPCoord(move string, boardYSize int) (x, y int, ok bool, err error) {
	move = strings.ToUpper(strings.TrimSpace(move))
	if move == "PASS" {
		return 0, 0, false, nil
	}
	if len(move) < 2 {
		return 0, 0, false, fmt.Errorf("неверный формат координаты: %q", move)
	}
	x = strings.IndexByte(gtpColumns, move[0])
	if x < 0 {
		return 0, 0, false, fmt.Errorf("неверная колонка: %q", move)
	}
	row, err := strconv.Atoi(move[1:])
	if err != nil || row < 1 || row > boardYSize {
		return 0, 0, false, fmt.Errorf("неверная строка: %q", move)
	}
	return x, boardYSize - row, true, nil
}
