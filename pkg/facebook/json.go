package facebook

// Document is one message_N.json shard of a Facebook thread folder
// (spec §6 legacy Facebook on-disk ZIP layout).
type Document struct {
	Participants []Participant `json:"participants"`
	Messages     []Message     `json:"messages"`
	Title        string        `json:"title"`
	ThreadPath   string        `json:"thread_path"`
	Image        *Image        `json:"image"`
	JoinableMode *JoinableMode `json:"joinable_mode"`
}

type Participant struct {
	Name string `json:"name"`
}

type Message struct {
	SenderName             string     `json:"sender_name"`
	TimestampMs            int64      `json:"timestamp_ms"`
	Content                string     `json:"content"`
	IsGeoblockedForViewer  bool       `json:"is_geoblocked_for_viewer"`
	IsUnsent               bool       `json:"is_unsent"`
	AudioFiles             []Media    `json:"audio_files"`
	Videos                 []Media    `json:"videos"`
	Photos                 []Media    `json:"photos"`
	GIFs                   []Media    `json:"gifs"`
	Sticker                *Sticker   `json:"sticker"`
	Share                  *Share     `json:"share"`
	Reactions              []Reaction `json:"reactions"`
}

type Media struct {
	URI               string `json:"uri"`
	CreationTimestamp int64  `json:"creation_timestamp"`
}

type Sticker struct {
	URI string `json:"uri"`
}

type Share struct {
	Link      string `json:"link"`
	ShareText string `json:"share_text"`
}

type Reaction struct {
	Reaction string `json:"reaction"`
	Actor    string `json:"actor"`
}

type Image struct {
	URI string `json:"uri"`
}

type JoinableMode struct {
	Link string `json:"link"`
}

// repairEncoding applies pointwise mojibake repair to every human-readable
// field of the document (spec §4.3).
func (d *Document) repairEncoding(fix func(string) string) {
	d.Title = fix(d.Title)
	d.ThreadPath = fix(d.ThreadPath)
	if d.Image != nil {
		d.Image.URI = fix(d.Image.URI)
	}
	if d.JoinableMode != nil {
		d.JoinableMode.Link = fix(d.JoinableMode.Link)
	}
	for i := range d.Participants {
		d.Participants[i].Name = fix(d.Participants[i].Name)
	}
	for mi := range d.Messages {
		m := &d.Messages[mi]
		m.SenderName = fix(m.SenderName)
		m.Content = fix(m.Content)
		for i := range m.AudioFiles {
			m.AudioFiles[i].URI = fix(m.AudioFiles[i].URI)
		}
		for i := range m.Videos {
			m.Videos[i].URI = fix(m.Videos[i].URI)
		}
		for i := range m.Photos {
			m.Photos[i].URI = fix(m.Photos[i].URI)
		}
		for i := range m.GIFs {
			m.GIFs[i].URI = fix(m.GIFs[i].URI)
		}
		if m.Sticker != nil {
			m.Sticker.URI = fix(m.Sticker.URI)
		}
		if m.Share != nil {
			m.Share.Link = fix(m.Share.Link)
			m.Share.ShareText = fix(m.Share.ShareText)
		}
		for i := range m.Reactions {
			m.Reactions[i].Reaction = fix(m.Reactions[i].Reaction)
			m.Reactions[i].Actor = fix(m.Reactions[i].Actor)
		}
	}
}
