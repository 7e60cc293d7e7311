package service

import (
	"fmt"
	"math/rand"
)

var avatarPalette = []string{"🔴", "🟤", "🟡", "⚫", "🟢", "🔵", "🟣", "🟠"}

// Identity is the display name and avatar shown next to a comment.
type Identity struct {
	Author string
	Avatar string
}

// IdentityFunc produces a display identity for an anonymous submitter.
type IdentityFunc func() Identity

// RandomIdentity returns a handle like @user4821 with a colored avatar.
func RandomIdentity() Identity {
	return Identity{
		Author: fmt.Sprintf("@user%d", 1000+rand.Intn(9000)),
		Avatar: avatarPalette[rand.Intn(len(avatarPalette))],
	}
}
