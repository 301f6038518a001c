package roles

import (
	"errors"
	"math/rand"
	"time"

	"github.com/google/uuid"
)

var ErrInvalidPlayerCount = errors.New("not enough players for a match")
var ErrInvalidCustomConfig = errors.New("custom role selection does not fit the player count")

// MinPlayers is the smallest match the quota formula supports.
const MinPlayers = 4

type Mode string

const (
	ModeRecommended Mode = "recommended"
	ModeCustom      Mode = "custom"
)

type CustomConfig struct {
	SelectedRoles []Role `json:"selectedRoles"`
}

// Player is a role-bearing match participant. The role never changes
// after assignment; status flags mutate only through engine transitions.
type Player struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Role          Role   `json:"role,omitempty"`
	IsAlive       bool   `json:"isAlive"`
	IsRevealed    bool   `json:"isRevealed"`
	IsSilenced    bool   `json:"isSilenced"`
	IsRoleblocked bool   `json:"-"`
}

type Assigner struct {
	rng *rand.Rand
}

func NewAssigner(rng *rand.Rand) *Assigner {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Assigner{rng: rng}
}

// Assign builds the role multiset for len(names) players, shuffles it,
// and zips it index-for-index with names. Names are expected to be
// unique and non-empty; the assigner only enforces the count.
func (a *Assigner) Assign(names []string, mode Mode, custom *CustomConfig) ([]Player, error) {
	n := len(names)
	if n < MinPlayers {
		return nil, ErrInvalidPlayerCount
	}

	var pool []Role
	var err error
	switch mode {
	case ModeCustom:
		pool, err = CustomRoles(n, custom)
		if err != nil {
			return nil, err
		}
	default:
		pool = RecommendedRoles(n)
	}

	a.shuffle(pool)

	players := make([]Player, n)
	for i, name := range names {
		players[i] = Player{
			ID:      uuid.NewString(),
			Name:    name,
			Role:    pool[i],
			IsAlive: true,
		}
	}
	return players, nil
}

// RecommendedRoles derives the role multiset for n players from the
// monotonic count thresholds: one mafia slot per four players (at
// least one), specials unlocking as the table grows, citizens filling
// the rest. The first mafia slot is upgraded to godfather at 8+.
func RecommendedRoles(n int) []Role {
	pool := make([]Role, 0, n)

	mafiaCount := n / 4
	if mafiaCount < 1 {
		mafiaCount = 1
	}
	for i := 0; i < mafiaCount; i++ {
		if i == 0 && n >= catalog[Godfather].MinPlayers {
			pool = append(pool, Godfather)
			continue
		}
		pool = append(pool, Mafia)
	}

	for _, r := range []Role{Detective, Doctor, Silencer, Joker, Kamikaze, Hooker} {
		if n >= catalog[r].MinPlayers {
			pool = append(pool, r)
		}
	}

	for len(pool) < n {
		pool = append(pool, Citizen)
	}
	return pool
}

// CustomRoles starts from the host's explicit selection and tops it up
// with mafia (up to the quota for n) and citizens. Two free slots are
// required so the fill always has room for at least one of each.
func CustomRoles(n int, custom *CustomConfig) ([]Role, error) {
	if custom == nil || len(custom.SelectedRoles)+2 > n {
		return nil, ErrInvalidCustomConfig
	}
	for _, r := range custom.SelectedRoles {
		if _, ok := catalog[r]; !ok {
			return nil, ErrInvalidCustomConfig
		}
	}

	pool := make([]Role, 0, n)
	pool = append(pool, custom.SelectedRoles...)

	selected := 0
	for _, r := range pool {
		if TeamOf(r) == TeamMafia {
			selected++
		}
	}
	quota := n / 4
	if quota < 1 {
		quota = 1
	}
	need := quota - selected
	if need < 0 {
		need = 0
	}
	if free := n - len(pool); need > free {
		need = free
	}
	for i := 0; i < need; i++ {
		pool = append(pool, Mafia)
	}

	for len(pool) < n {
		pool = append(pool, Citizen)
	}
	return pool, nil
}

// Fisher-Yates, uniform over permutations.
func (a *Assigner) shuffle(pool []Role) {
	for i := len(pool) - 1; i > 0; i-- {
		j := a.rng.Intn(i + 1)
		pool[i], pool[j] = pool[j], pool[i]
	}
}
