package domain

import "time"

// ServerSelection is the champion a user committed to for the next match in a server
type ServerSelection struct {
	ID          string    `json:"id"`
	ServerID    string    `json:"serverId"`
	UserID      string    `json:"userId"`
	PokemonID   string    `json:"pokemonId"`
	PokemonName string    `json:"pokemonName"`
	CreatedAt   time.Time `json:"createdAt"`
}

// SelectionRequest represents a user picking a champion in a server
type SelectionRequest struct {
	ServerID    string `json:"serverId"`
	UserID      string `json:"userId"`
	PokemonID   string `json:"pokemonId"`
	PokemonName string `json:"pokemonName"`
}

// MatchRecord is one resolved duel between two selections
type MatchRecord struct {
	ID                 string    `json:"id"`
	ServerID           string    `json:"serverId"`
	Player1ID          string    `json:"player1Id"`
	Player2ID          string    `json:"player2Id"`
	Player1PokemonID   string    `json:"player1PokemonId"`
	Player1PokemonName string    `json:"player1PokemonName"`
	Player2PokemonID   string    `json:"player2PokemonId"`
	Player2PokemonName string    `json:"player2PokemonName"`
	WinnerID           string    `json:"winnerId"`
	CreatedAt          time.Time `json:"createdAt"`
}

// Involves reports whether userID played in the match
func (m MatchRecord) Involves(userID string) bool {
	return m.Player1ID == userID || m.Player2ID == userID
}

// MatchStats summarizes a trainer's record
type MatchStats struct {
	Played int `json:"played"`
	Wins   int `json:"wins"`
	Losses int `json:"losses"`
}

// Champion is a roster entry a trainer can pick
type Champion struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	ImageURL    string `json:"imageUrl"`
}
