package github

// User is the subset of a GitHub user profile depglobe reads.
// Location is free text and often empty.
type User struct {
	Login    string `json:"login"`
	Name     string `json:"name"`
	Location string `json:"location"`
}

// Repo is the subset of a GitHub repository depglobe reads.
type Repo struct {
	Name     string `json:"name"`
	FullName string `json:"full_name"`
	Fork     bool   `json:"fork"`
	Archived bool   `json:"archived"`
}
