package forumtest

import "time"

var base = time.Date(2024, 2, 3, 10, 0, 0, 0, time.UTC)

func at(minutes int) time.Time {
	return base.Add(time.Duration(minutes) * time.Minute)
}

// New returns the sample forum: three threads over two listing pages, six
// members covering full, sparse and broken profiles, and posts exercising
// quotes, mentions and a malformed post.
func New() *Forum {
	members := map[int]Member{
		1: {ID: 1, Name: "Alice", Role: "Veteran Member", Joined: time.Date(2012, 1, 5, 0, 0, 0, 0, time.UTC),
			Messages: 1240, Reactions: 2500, Points: 83, Location: "Lisbon", Gender: "Female", MBTI: "INTJ", Occupation: "Data analyst"},
		2: {ID: 2, Name: "Bob", Display: "bob", Role: "Member", Joined: time.Date(2019, 7, 1, 0, 0, 0, 0, time.UTC),
			Messages: 87, Reactions: 40, Points: 10, MBTI: "ENFP"},
		3: {ID: 3, Name: "Carol", Role: "Member", Joined: time.Date(2020, 3, 9, 0, 0, 0, 0, time.UTC),
			Messages: 15, Reactions: 3, Points: 1, Sparse: true},
		4: {ID: 4, Name: "Dave", Broken: true},
		5: {ID: 5, Name: "sam", Role: "New Member", Joined: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), Messages: 2},
		6: {ID: 6, Name: "Sam", Role: "New Member", Joined: time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC), Messages: 4},
	}

	threads := []Thread{
		{ID: 10, Slug: "coffee-or-tea", Title: "Coffee or tea?", Posts: []Post{
			{ID: 101, Author: 1, Time: at(0), Body: "Coffee is the best way to start the day."},
			{ID: 102, Author: 2, Time: at(5), Body: "Tea, obviously.\n@carol what do you think?",
				Quotes: []Quote{{PostID: 101, MemberID: 1}}},
			{ID: 103, Author: 3, Time: at(9), Body: "Neither. Water."},
			{ID: 104, Author: 4, Time: at(12), Body: "I'm with Bob on this one.",
				Quotes: []Quote{{MemberID: 2, Text: "Tea, obviously."}}},
			{ID: 105, Author: 2, Time: at(20), Body: "Thanks @Dave!"},
		}},
		{ID: 11, Slug: "introductions", Title: "Introductions", Posts: []Post{
			{ID: 201, Author: 5, Time: at(60), Body: "Hi, I'm sam."},
			{ID: 202, Author: 6, Time: at(61), Body: "Hi, I'm also Sam."},
			{ID: 203, Author: 1, Time: at(70), Body: "Welcome @sam, whichever one you are."},
		}},
		{ID: 12, Slug: "glitchy-thread", Title: "Glitchy thread", Posts: []Post{
			{ID: 301, Author: 1, Time: at(120), Body: "This thread has a broken post below."},
			{ID: 302, Author: 2, Time: at(121), Body: "I have no timestamp.", NoTime: true},
			{ID: 303, Author: 3, Time: at(125), Body: "Still here."},
		}},
	}

	return &Forum{
		Name:           "General Discussion",
		NodeID:         3,
		NodeSlug:       "general",
		Threads:        threads,
		Members:        members,
		PostsPerPage:   3,
		ThreadsPerPage: 2,
	}
}
