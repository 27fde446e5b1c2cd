package tmdb

// Result represents a single TMDB search match or detail payload.
type Result struct {
	ID               int64   `json:"id"`
	Title            string  `json:"title"`
	Name             string  `json:"name"`
	Overview         string  `json:"overview"`
	PosterPath       string  `json:"poster_path"`
	BackdropPath     string  `json:"backdrop_path"`
	ReleaseDate      string  `json:"release_date"`
	FirstAirDate     string  `json:"first_air_date"`
	MediaType        string  `json:"media_type"`
	GenreIDs         []int   `json:"genre_ids"`
	OriginalLanguage string  `json:"original_language"`
	Popularity       float64 `json:"popularity"`
	VoteAverage      float64 `json:"vote_average"`
	VoteCount        int64   `json:"vote_count"`
}

// DisplayTitle returns the movie title or TV name, whichever is set.
func (r Result) DisplayTitle() string {
	if r.Title != "" {
		return r.Title
	}
	return r.Name
}

// Response models the TMDB paginated search response.
type Response struct {
	Page         int      `json:"page"`
	Results      []Result `json:"results"`
	TotalPages   int      `json:"total_pages"`
	TotalResults int      `json:"total_results"`
}

// CreditEntry is one cast or crew member of a credits payload.
type CreditEntry struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Character   string `json:"character,omitempty"`
	Job         string `json:"job,omitempty"`
	Department  string `json:"department,omitempty"`
	ProfilePath string `json:"profile_path"`
	Order       int    `json:"order"`
}

// Credits models the credits payload for a movie or TV show.
type Credits struct {
	ID   int64         `json:"id"`
	Cast []CreditEntry `json:"cast"`
	Crew []CreditEntry `json:"crew"`
}

// Person models a person detail payload.
type Person struct {
	ID           int64   `json:"id"`
	Name         string  `json:"name"`
	Biography    string  `json:"biography"`
	Birthday     string  `json:"birthday"`
	Deathday     string  `json:"deathday"`
	PlaceOfBirth string  `json:"place_of_birth"`
	ProfilePath  string  `json:"profile_path"`
	Popularity   float64 `json:"popularity"`
	KnownFor     string  `json:"known_for_department"`
}

// CombinedCredits models a person's combined movie and TV credits.
type CombinedCredits struct {
	ID   int64    `json:"id"`
	Cast []Result `json:"cast"`
	Crew []Result `json:"crew"`
}
