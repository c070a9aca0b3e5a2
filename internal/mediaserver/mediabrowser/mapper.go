package mediabrowser

import "github.com/d3v1l1989/embywatch/internal/domain"

// MapLibraries converts virtual folders to domain libraries
func MapLibraries(folders []VirtualFolder) []domain.Library {
	libraries := make([]domain.Library, 0, len(folders))
	for _, f := range folders {
		if f.ItemID == "" {
			continue
		}
		libraries = append(libraries, domain.Library{
			ID:             f.ItemID,
			Name:           f.Name,
			CollectionType: f.CollectionType,
		})
	}
	return libraries
}

// CountItems tallies items by type
func CountItems(items []Item) domain.ItemCounts {
	var counts domain.ItemCounts
	for _, item := range items {
		switch item.Type {
		case "Movie":
			counts.Movies++
		case "Series":
			counts.Series++
		case "Episode":
			counts.Episodes++
		}
	}
	return counts
}

// MapSessions converts session DTOs to domain sessions
func MapSessions(infos []SessionInfo) []domain.Session {
	sessions := make([]domain.Session, 0, len(infos))
	for _, info := range infos {
		s := domain.Session{
			ID:         info.ID,
			UserName:   info.UserName,
			Client:     info.Client,
			DeviceName: info.DeviceName,
		}
		if info.NowPlayingItem != nil {
			s.NowPlaying = mapNowPlaying(*info.NowPlayingItem, info.PlayState)
		}
		sessions = append(sessions, s)
	}
	return sessions
}

func mapNowPlaying(item Item, state PlayState) *domain.NowPlaying {
	np := &domain.NowPlaying{
		Name:          item.Name,
		Type:          item.Type,
		SeriesName:    item.SeriesName,
		SeasonNumber:  item.ParentIndexNumber,
		EpisodeNumber: item.IndexNumber,
		RunTimeTicks:  item.RunTimeTicks,
		PositionTicks: state.PositionTicks,
		IsPaused:      state.IsPaused,
	}
	for _, stream := range item.MediaStreams {
		if stream.Type == "Video" {
			np.Width = stream.Width
			np.Height = stream.Height
			break
		}
	}
	return np
}

func mapSystemInfo(info SystemInfo) *domain.SystemInfo {
	return &domain.SystemInfo{
		ID:              info.ID,
		ServerName:      info.ServerName,
		Version:         info.Version,
		OperatingSystem: info.OperatingSystem,
		ProductName:     info.ProductName,
	}
}
