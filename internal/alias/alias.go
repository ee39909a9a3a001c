// Package alias generates the random "Silent Panda" style display names
// users post under. The wordlists are part of the product; aliases are the
// only identity other users ever see.
package alias

import "math/rand/v2"

var adjectives = []string{
	"Silent", "Funny", "Stoic", "Radiant", "Mystic",
	"Salty", "Brave", "Chill", "Wild", "Clever",
	"Clumsy", "Eager", "Fancy", "Jolly", "Lazy",
}

var animals = []string{
	"Panda", "Rhino", "Owl", "Tiger", "Rabbit",
	"Fox", "Otter", "Lion", "Wolf", "Eagle",
	"Capybara", "Koala", "Dolphin", "Shark", "Cat",
}

// Generate returns a random adjective-animal pair. Uniqueness is the
// caller's problem; signup retries until the alias is free.
func Generate() string {
	return adjectives[rand.IntN(len(adjectives))] + " " + animals[rand.IntN(len(animals))]
}
