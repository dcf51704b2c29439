package services

import (
	"fmt"
	"log"
	"time"

	"github.com/gorcon/rcon"
)

// GameServerNotifier pushes session passwords to game servers over RCON.
// Strictly best-effort: failures are logged and never block a state
// transition, and calls run outside any storage transaction.
type GameServerNotifier struct {
	RconPassword string
	Timeout      time.Duration
}

func NewGameServerNotifier(rconPassword string) *GameServerNotifier {
	return &GameServerNotifier{
		RconPassword: rconPassword,
		Timeout:      5 * time.Second,
	}
}

// PushPassword fires sv_password at the server in the background.
func (n *GameServerNotifier) PushPassword(server, password string) {
	if n == nil || n.RconPassword == "" || server == "" || password == "" {
		return
	}
	go func() {
		conn, err := rcon.Dial(server, n.RconPassword, rcon.SetDialTimeout(n.Timeout))
		if err != nil {
			log.Printf("[RCON] dial %s failed: %v", server, err)
			return
		}
		defer conn.Close()
		if _, err := conn.Execute(fmt.Sprintf("sv_password %s", password)); err != nil {
			log.Printf("[RCON] sv_password on %s failed: %v", server, err)
			return
		}
		log.Printf("[RCON] pushed session password to %s", server)
	}()
}
