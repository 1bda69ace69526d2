package signaling

import (
	"crypto/rand"
	"log"
	"math/big"
)

var adjectives = []string{
	"tiny", "happy", "sleepy", "fluffy", "sparkly", "cheery", "silly", "jolly", "cozy", "shiny",
	"golden", "silver", "crimson", "emerald", "purple", "blue", "red", "green", "bright", "gentle",
	"brave", "calm", "swift", "silent", "noisy", "bouncy", "fuzzy", "plucky", "merry", "peppy",
}

var animals = []string{
	"kitten", "puppy", "bunny", "panda", "koala", "fox", "otter", "hedgehog", "squirrel", "hamster",
	"chick", "duckling", "fawn", "foal", "lamb", "calf", "porcupine", "raccoon", "skunk", "mole",
	"mouse", "rat", "ferret", "weasel", "beaver", "seahorse", "starfish", "dolphin", "whale", "narwhal",
	"penguin", "flamingo", "pelican", "swallow", "sparrow", "robin", "toucan", "parrot", "canary", "cockatoo",
}

var avatarColors = []string{
	"#e57373", "#f06292", "#ba68c8", "#9575cd", "#7986cb", "#64b5f6",
	"#4fc3f7", "#4dd0e1", "#4db6ac", "#81c784", "#aed581", "#dce775",
	"#ffd54f", "#ffb74d", "#ff8a65", "#a1887f",
}

// defaultUserInfo builds display info for a client that joined without
// supplying any: a memorable adjective-animal name and a color avatar.
func defaultUserInfo() UserInfo {
	return UserInfo{
		Name:   adjectives[randomIndex(len(adjectives))] + "-" + animals[randomIndex(len(animals))],
		Avatar: avatarColors[randomIndex(len(avatarColors))],
	}
}

// randomIndex returns a cryptographically secure random index for a slice of given length.
func randomIndex(max int) int {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		log.Panic("Failed to generate random index:", err)
	}
	return int(n.Int64())
}
