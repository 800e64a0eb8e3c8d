package facebook

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// messagesRe matches a Facebook thread shard entry path (spec §4.4). The
// four alternatives are the canonical directory set — see SPEC_FULL.md §1c
// for why a fifth, "archived_threads", is deliberately not included.
var messagesRe = regexp.MustCompile(`^your_facebook_activity/messages/(inbox|e2ee_cutover|filtered_threads|message_requests)/([^/]+)/message_(\d+)\.json$`)

// ShardEntry is one matched message_N.json entry path.
type ShardEntry struct {
	EntryName  string
	FolderName string
	ShardNum   int
}

// MatchShard reports whether entryName is a Facebook thread shard, and if
// so returns its folder name and shard number.
func MatchShard(entryName string) (ShardEntry, bool) {
	m := messagesRe.FindStringSubmatch(entryName)
	if m == nil {
		return ShardEntry{}, false
	}
	num, err := strconv.Atoi(m[3])
	if err != nil {
		num = 0
	}
	return ShardEntry{EntryName: entryName, FolderName: m[2], ShardNum: num}, true
}

// CollectShards filters entryNames down to Facebook thread shards and sorts
// them lexicographically by folder name, then ascending by shard number
// (spec §4.4 "Thread assembly ordering").
func CollectShards(entryNames []string) []ShardEntry {
	var shards []ShardEntry
	for _, name := range entryNames {
		if s, ok := MatchShard(name); ok {
			shards = append(shards, s)
		}
	}
	sort.Slice(shards, func(i, j int) bool {
		if shards[i].FolderName != shards[j].FolderName {
			return shards[i].FolderName < shards[j].FolderName
		}
		return shards[i].ShardNum < shards[j].ShardNum
	})
	return shards
}

// LooksLikeFacebookExport is a cheap pre-check: does any entry name look like
// a Facebook message shard at all.
func LooksLikeFacebookExport(entryNames []string) bool {
	for _, name := range entryNames {
		if strings.Contains(name, "/messages/") && strings.Contains(name, "message_") && strings.HasSuffix(name, ".json") {
			return true
		}
	}
	return false
}
