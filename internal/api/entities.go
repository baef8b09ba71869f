// ABOUTME: JSON entity types exchanged with the forum API
// ABOUTME: Posts, comments, categories, users, and aggregate stats

package api

// OwnerRef identifies the user who owns a post or comment.
type OwnerRef struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
}

// Post is a forum post with its nested comments and category tags.
type Post struct {
	ID          int        `json:"id"`
	Title       string     `json:"title"`
	Content     string     `json:"content"`
	DateCreated string     `json:"date_created"`
	User        OwnerRef   `json:"user"`
	Categories  []Category `json:"categories_data"`
	Comments    []Comment  `json:"comments"`
}

// Comment is a single comment on a post.
type Comment struct {
	ID      int      `json:"id"`
	Content string   `json:"content"`
	User    OwnerRef `json:"user"`
}

// Category is a post category. Deleted categories are hidden, not removed;
// the server normally omits hidden ones from listings.
type Category struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Visible bool   `json:"visible"`
}

// User is a forum account as seen by the admin user list.
type User struct {
	ID        int    `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	IsActive  bool   `json:"is_active"`
	CreatedAt string `json:"created_at"`
}

// Stats is the aggregate counters from GET /stats.
type Stats struct {
	TotalUsers    int `json:"total_users"`
	TotalPosts    int `json:"total_posts"`
	TotalComments int `json:"total_comments"`
	PostsLastWeek int `json:"posts_last_week"`
}

// CreatePostParams is the JSON request body for POST /post.
type CreatePostParams struct {
	Title      string `json:"title"`
	Content    string `json:"content"`
	Categories []int  `json:"categories"`
}
