package game

import (
    "fmt"
    "strings"
    "time"
)

type Phase string

const (
    PhaseLobby          Phase = "lobby"
    PhasePromptDisplay  Phase = "promptDisplay"
    PhasePhotoSelection Phase = "photoSelection"
    PhasePhotoReveal    Phase = "photoReveal"
    PhaseVoting         Phase = "voting"
    PhaseRoundResults   Phase = "roundResults"
    PhaseFinalResults   Phase = "finalResults"
)

var transitions = map[Phase][]Phase{
    PhaseLobby:          {PhasePromptDisplay},
    PhasePromptDisplay:  {PhasePhotoSelection},
    PhasePhotoSelection: {PhasePhotoReveal},
    PhasePhotoReveal:    {PhaseVoting},
    PhaseVoting:         {PhaseRoundResults},
    PhaseRoundResults:   {PhasePromptDisplay, PhaseFinalResults},
    PhaseFinalResults:   {PhaseLobby},
}

// CanTransitionTo reports whether the round cycle allows moving from p to next.
func (p Phase) CanTransitionTo(next Phase) bool {
    for _, allowed := range transitions[p] {
        if allowed == next {
            return true
        }
    }
    return false
}

// HasCountdown reports whether the phase runs a per-second countdown.
func (p Phase) HasCountdown() bool {
    return p == PhasePhotoSelection || p == PhaseVoting
}

// InGame is true for every phase between startGame and the final results.
func (p Phase) InGame() bool {
    return p != PhaseLobby && p != PhaseFinalResults && p != ""
}

const (
    MinPlayers    = 2
    MaxPlayers    = 8
    PointsPerVote = 100

    PromptDisplayDuration  = 3 * time.Second
    RevealCardDuration     = 2 * time.Second
    ResultsDisplayDuration = 5 * time.Second

    MinRounds        = 3
    MaxRounds        = 15
    MinSelectionTime = 30
    MaxSelectionTime = 120
    MinVotingTime    = 15
    MaxVotingTime    = 60
)

type Category string

const (
    CategoryFunny        Category = "funny"
    CategoryEmbarrassing Category = "embarrassing"
    CategoryWholesome    Category = "wholesome"
    CategoryTravel       Category = "travel"
    CategoryFood         Category = "food"
    CategoryPets         Category = "pets"
    CategoryThrowback    Category = "throwback"
    CategoryArtistic     Category = "artistic"
    CategoryChaotic      Category = "chaotic"
    CategoryRandom       Category = "random"
)

// AllCategories lists every category in display order.
func AllCategories() []Category {
    return []Category{
        CategoryFunny, CategoryEmbarrassing, CategoryWholesome, CategoryTravel, CategoryFood,
        CategoryPets, CategoryThrowback, CategoryArtistic, CategoryChaotic, CategoryRandom,
    }
}

// ParseCategory maps free text onto a known category; unknown values become CategoryRandom.
func ParseCategory(s string) Category {
    c := Category(strings.ToLower(strings.TrimSpace(s)))
    for _, known := range AllCategories() {
        if c == known {
            return c
        }
    }
    return CategoryRandom
}

type Prompt struct {
    ID       string   `json:"id"`
    Text     string   `json:"text"`
    Category Category `json:"category"`
}

type Settings struct {
    RoundCount    int        `json:"roundCount"`
    SelectionTime int        `json:"selectionTime"` // seconds
    VotingTime    int        `json:"votingTime"`    // seconds
    Categories    []Category `json:"categories,omitempty"`
}

func DefaultSettings() Settings  { return Settings{RoundCount: 5, SelectionTime: 60, VotingTime: 30} }
func QuickSettings() Settings    { return Settings{RoundCount: 3, SelectionTime: 45, VotingTime: 20} }
func ExtendedSettings() Settings { return Settings{RoundCount: 10, SelectionTime: 90, VotingTime: 45} }

// SettingsPreset resolves a preset name; the empty name is the default preset.
func SettingsPreset(name string) (Settings, error) {
    switch strings.ToLower(name) {
    case "", "default":
        return DefaultSettings(), nil
    case "quick":
        return QuickSettings(), nil
    case "extended":
        return ExtendedSettings(), nil
    }
    return Settings{}, fmt.Errorf("%w: unknown preset %q", ErrInvalidSettings, name)
}

func (s Settings) Validate() error {
    if s.RoundCount < MinRounds || s.RoundCount > MaxRounds {
        return fmt.Errorf("%w: round count %d outside %d..%d", ErrInvalidSettings, s.RoundCount, MinRounds, MaxRounds)
    }
    if s.SelectionTime < MinSelectionTime || s.SelectionTime > MaxSelectionTime {
        return fmt.Errorf("%w: selection time %ds outside %d..%d", ErrInvalidSettings, s.SelectionTime, MinSelectionTime, MaxSelectionTime)
    }
    if s.VotingTime < MinVotingTime || s.VotingTime > MaxVotingTime {
        return fmt.Errorf("%w: voting time %ds outside %d..%d", ErrInvalidSettings, s.VotingTime, MinVotingTime, MaxVotingTime)
    }
    return nil
}

// TimeLimit returns the countdown length in seconds for phases that have one.
func (s Settings) TimeLimit(p Phase) int {
    switch p {
    case PhasePhotoSelection:
        return s.SelectionTime
    case PhaseVoting:
        return s.VotingTime
    }
    return 0
}

type Player struct {
    ID           string `json:"id"`
    Name         string `json:"name"`
    Avatar       string `json:"avatar"`
    Score        int    `json:"score"`
    IsHost       bool   `json:"isHost"`
    Connected    bool   `json:"connected"`
    HasSubmitted bool   `json:"hasSubmitted"`
    HasVoted     bool   `json:"hasVoted"`
}

// Submission is one player's photo for the current round. Image is an opaque
// encoded payload and is never mutated after creation.
type Submission struct {
    ID        string    `json:"id"`
    PlayerID  string    `json:"playerId"`
    Image     []byte    `json:"image"`
    CreatedAt time.Time `json:"createdAt"`
    Votes     []string  `json:"votes"`
}

func (s *Submission) VoteCount() int { return len(s.Votes) }

func (s *Submission) HasVoter(playerID string) bool {
    for _, v := range s.Votes {
        if v == playerID {
            return true
        }
    }
    return false
}

// Avatars is the symbol set players pick from.
var Avatars = []string{
    "😀", "😎", "🤠", "🥳", "🤓", "😺", "🐶", "🦊",
    "🐼", "🐨", "🐸", "🐵", "🦁", "🐯", "🐷", "🐙",
    "🦄", "🐝", "🦋", "🐢", "🐳", "🦖", "👻", "👽",
    "🤖", "🎃", "🌈", "🔥", "⭐", "🍕", "🍩", "🎸",
}
