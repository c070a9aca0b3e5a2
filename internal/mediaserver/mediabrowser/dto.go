package mediabrowser

// AuthResponse represents the response from the AuthenticateByName endpoint
type AuthResponse struct {
	User        User   `json:"User"`
	AccessToken string `json:"AccessToken"`
	ServerID    string `json:"ServerId"`
}

// User represents a server user
type User struct {
	ID   string `json:"Id"`
	Name string `json:"Name"`
}

// SystemInfo represents /System/Info and /System/Info/Public
type SystemInfo struct {
	ServerName      string `json:"ServerName"`
	Version         string `json:"Version"`
	ProductName     string `json:"ProductName"`
	OperatingSystem string `json:"OperatingSystem"`
	ID              string `json:"Id"`
}

// VirtualFolder represents one entry of /Library/VirtualFolders
type VirtualFolder struct {
	Name           string   `json:"Name"`
	ItemID         string   `json:"ItemId"`
	CollectionType string   `json:"CollectionType,omitempty"`
	Locations      []string `json:"Locations,omitempty"`
}

// ItemsResponse represents a list of items from /Items
type ItemsResponse struct {
	Items            []Item `json:"Items"`
	TotalRecordCount int    `json:"TotalRecordCount"`
}

// Item is the subset of BaseItemDto the bot reads
type Item struct {
	ID                string        `json:"Id"`
	Name              string        `json:"Name"`
	Type              string        `json:"Type"`
	SeriesName        string        `json:"SeriesName,omitempty"`
	ParentIndexNumber int           `json:"ParentIndexNumber,omitempty"` // Season number
	IndexNumber       int           `json:"IndexNumber,omitempty"`       // Episode number
	RunTimeTicks      int64         `json:"RunTimeTicks,omitempty"`      // 100-nanosecond units
	MediaStreams      []MediaStream `json:"MediaStreams,omitempty"`
}

// MediaStream describes one stream inside a media file
type MediaStream struct {
	Type   string `json:"Type"` // "Video", "Audio", "Subtitle"
	Width  int    `json:"Width,omitempty"`
	Height int    `json:"Height,omitempty"`
}

// SessionInfo represents one entry of /Sessions
type SessionInfo struct {
	ID             string    `json:"Id"`
	UserName       string    `json:"UserName"`
	Client         string    `json:"Client"`
	DeviceName     string    `json:"DeviceName"`
	NowPlayingItem *Item     `json:"NowPlayingItem,omitempty"`
	PlayState      PlayState `json:"PlayState"`
}

// PlayState carries playback position for a session
type PlayState struct {
	PositionTicks int64 `json:"PositionTicks"`
	IsPaused      bool  `json:"IsPaused"`
}
