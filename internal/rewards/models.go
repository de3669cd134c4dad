package rewards

import "errors"

var (
	ErrUnknownSticker    = errors.New("unknown sticker")
	ErrUnknownItem       = errors.New("unknown shop item")
	ErrInsufficientStars = errors.New("not enough stars")
)

// Sticker is a collectible badge.
type Sticker struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Icon        string `json:"icon"`
	Requirement string `json:"requirement"`
	Unlocked    bool   `json:"unlocked"`
}

// ShopItem is an accessory for the chat companion.
type ShopItem struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Icon string `json:"icon"`
	Cost int    `json:"cost"`
}

// Stats is the child's star balance and shop state.
type Stats struct {
	Stars    int      `json:"stars"`
	Score    int      `json:"score"`
	Wins     int      `json:"wins"`
	Owned    []string `json:"owned"`
	Equipped string   `json:"equipped,omitempty"`
}

func (s Stats) owns(id string) bool {
	for _, o := range s.Owned {
		if o == id {
			return true
		}
	}
	return false
}

func (s Stats) clone() Stats {
	s.Owned = append([]string(nil), s.Owned...)
	return s
}

// Celebration is sent to observers when a sticker is unlocked.
type Celebration struct {
	Sticker Sticker `json:"sticker"`
}

// PurchaseAction says what PurchaseItem did.
type PurchaseAction string

const (
	ActionBought     PurchaseAction = "bought"
	ActionEquipped   PurchaseAction = "equipped"
	ActionUnequipped PurchaseAction = "unequipped"
)

// Purchase is the outcome of PurchaseItem.
type Purchase struct {
	Item   ShopItem       `json:"item"`
	Action PurchaseAction `json:"action"`
	Stats  Stats          `json:"stats"`
}

const (
	StickerFirstWin      = "s1"
	StickerScore50       = "s2"
	StickerTenWords      = "s3"
	StickerScore100      = "s4"
	StickerPronunciation = "s5"
	StickerFirstPurchase = "s6"
)

// Stars granted per event.
const (
	StarsPerWin     = 10
	StarsPerDrawing = 15
)

var stickers = []Sticker{
	{ID: StickerFirstWin, Name: "Super Star", Icon: "⭐", Requirement: "First Game Win"},
	{ID: StickerScore50, Name: "Dino Friend", Icon: "🦖", Requirement: "Score 50 Points"},
	{ID: StickerTenWords, Name: "Rocket Learner", Icon: "🚀", Requirement: "Discover 10 Words"},
	{ID: StickerScore100, Name: "Wise Bear", Icon: "🧸", Requirement: "Score 100 Points"},
	{ID: StickerPronunciation, Name: "Speaker", Icon: "🎙️", Requirement: "Perfect Pronunciation"},
	{ID: StickerFirstPurchase, Name: "Stylist", Icon: "👗", Requirement: "Buy first item"},
}

var shop = []ShopItem{
	{ID: "item1", Name: "Party Hat", Icon: "🥳", Cost: 20},
	{ID: "item2", Name: "Cool Shades", Icon: "🕶️", Cost: 50},
	{ID: "item3", Name: "Super Cape", Icon: "🦸", Cost: 100},
	{ID: "item4", Name: "Magic Wand", Icon: "🪄", Cost: 150},
	{ID: "item5", Name: "Crown", Icon: "👑", Cost: 300},
	{ID: "item6", Name: "Scarf", Icon: "🧣", Cost: 30},
}

func findSticker(id string) (Sticker, bool) {
	for _, s := range stickers {
		if s.ID == id {
			return s, true
		}
	}
	return Sticker{}, false
}

func findItem(id string) (ShopItem, bool) {
	for _, it := range shop {
		if it.ID == id {
			return it, true
		}
	}
	return ShopItem{}, false
}
