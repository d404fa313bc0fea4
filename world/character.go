// Package world holds the game-side collaborators the network engine calls
// into: characters, authentication, combat and the set of players in game.
package world

import (
	"context"
	"errors"
)

var (
	ErrCharacterNotFound = errors.New("character not found")
	ErrAlreadyOnline     = errors.New("character already in game")
)

// Point is a position in world coordinates.
type Point struct {
	X, Y, Z int32
}

// Character is a player character.
type Character struct {
	ID      int32
	Account string
	Name    string
	Slot    int
	Level   int32
	Point   Point
	Attack  int32
	Defence int32
}

// CharacterService looks up and creates characters.
type CharacterService interface {
	// ListByAccount returns an account's characters ordered by slot.
	ListByAccount(ctx context.Context, account string) ([]Character, error)

	// Get returns the character with id, or ErrCharacterNotFound.
	Get(ctx context.Context, id int32) (Character, error)

	// Create stores c in the account's next free slot and assigns its ID.
	Create(ctx context.Context, c Character) (Character, error)
}
