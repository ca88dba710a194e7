package apitest

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/vitalhub/thrivesync/internal/model"
	pkgvalidator "github.com/vitalhub/thrivesync/pkg/validator"
)

type createCommentRequest struct {
	Text string `json:"text" binding:"required,min=1,max=2000"`
}

type sendMessageRequest struct {
	Body string `json:"body" binding:"required,min=1,max=4000"`
}

// Router builds the gin engine with every route the sync core consumes.
func (b *Backend) Router(allowedOrigins string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(gin.Recovery())

	if allowedOrigins != "" {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     strings.Split(allowedOrigins, ","),
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	auth := r.Group("/", b.requireAuth())
	{
		auth.GET("/feed", b.getFeed)
		auth.POST("/posts/:id/like", b.likePost)
		auth.POST("/posts/:id/unlike", b.unlikePost)
		auth.GET("/posts/:id/comments", b.getComments)
		auth.POST("/posts/:id/comments", b.createComment)
		auth.POST("/posts/:id/share", b.sharePost)

		auth.GET("/talk/:threadId", b.getHistory(model.ThreadTalk))
		auth.POST("/talk/:threadId/messages", b.sendMessage(model.ThreadTalk))
		auth.GET("/dm/:userId", b.getHistory(model.ThreadDM))
		auth.POST("/dm/:userId", b.sendMessage(model.ThreadDM))

		auth.GET("/notifications", b.getNotifications)
		auth.POST("/notifications/:id/read", b.markRead)
		auth.POST("/notifications/read-all", b.markAllRead)

		auth.GET("/challenges/:id/days/:day/tasks", b.getTasks)

		auth.GET("/ws/receipts", b.receipts)
	}
	return r
}

func (b *Backend) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := ""
		authHeader := c.GetHeader("Authorization")
		if authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) == 2 && parts[0] == "Bearer" {
				tokenString = parts[1]
			}
		}
		// Fallback to query parameter "token" (useful for WebSockets)
		if tokenString == "" {
			tokenString = c.Query("token")
		}
		if tokenString == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
			c.Abort()
			return
		}

		token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(b.secret), nil
		})
		if err != nil || !token.Valid {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			c.Abort()
			return
		}

		claims, ok := token.Claims.(*jwt.RegisteredClaims)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token claims"})
			c.Abort()
			return
		}

		c.Set("user_id", claims.Subject)
		c.Next()
	}
}

func (b *Backend) author(c *gin.Context) model.Author {
	userID := c.GetString("user_id")
	b.mu.Lock()
	defer b.mu.Unlock()
	if a, ok := b.users[userID]; ok {
		return a
	}
	id, err := uuid.Parse(userID)
	if err != nil {
		id = uuid.Nil
	}
	return model.Author{ID: id, Username: "user-" + userID}
}

func pageParams(c *gin.Context) (cursor string, limit int) {
	cursor = c.Query("cursor")
	limit = 20
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	return cursor, limit
}

// tailWindow pages a newest-first slice forward. Cursors are "off:<n>".
func (b *Backend) tailWindow(total int, cursor string, limit int) (start, end int, next *string, err error) {
	start = 0
	if cursor != "" {
		raw, ok := strings.CutPrefix(cursor, "off:")
		if !ok {
			return 0, 0, nil, fmt.Errorf("bad cursor %q", cursor)
		}
		start, err = strconv.Atoi(raw)
		if err != nil {
			return 0, 0, nil, err
		}
	}
	start -= b.overlapNext
	b.overlapNext = 0
	if start < 0 {
		start = 0
	}
	end = start + limit
	if end > total {
		end = total
	}
	if end < total {
		s := "off:" + strconv.Itoa(end)
		next = &s
	}
	return start, end, next, nil
}

// headWindow pages an oldest-first slice backward. Cursors are "idx:<n>",
// the index just past the end of the next-older window.
func (b *Backend) headWindow(total int, cursor string, limit int) (start, end int, next *string, err error) {
	end = total
	if cursor != "" {
		raw, ok := strings.CutPrefix(cursor, "idx:")
		if !ok {
			return 0, 0, nil, fmt.Errorf("bad cursor %q", cursor)
		}
		end, err = strconv.Atoi(raw)
		if err != nil {
			return 0, 0, nil, err
		}
	}
	end += b.overlapNext
	b.overlapNext = 0
	if end > total {
		end = total
	}
	start = end - limit
	if start < 0 {
		start = 0
	}
	if start > 0 {
		s := "idx:" + strconv.Itoa(start)
		next = &s
	}
	return start, end, next, nil
}

func (b *Backend) getFeed(c *gin.Context) {
	if b.intercept("feed") {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "injected failure"})
		return
	}
	cursor, limit := pageParams(c)
	userID := c.GetString("user_id")

	b.mu.Lock()
	defer b.mu.Unlock()
	start, end, next, err := b.tailWindow(len(b.posts), cursor, limit)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	items := make([]model.Post, 0, end-start)
	for _, p := range b.posts[start:end] {
		p.LikedByMe = b.likedBy[p.ID][userID]
		items = append(items, p)
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "next_cursor": next})
}

func (b *Backend) likePost(c *gin.Context) {
	b.toggleLike(c, "like", true)
}

func (b *Backend) unlikePost(c *gin.Context) {
	b.toggleLike(c, "unlike", false)
}

func (b *Backend) toggleLike(c *gin.Context, route string, liked bool) {
	if b.intercept(route) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "injected failure"})
		return
	}
	postID := c.Param("id")
	userID := c.GetString("user_id")

	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.posts {
		if b.posts[i].ID != postID {
			continue
		}
		set := b.likedBy[postID]
		if set == nil {
			set = make(map[string]bool)
			b.likedBy[postID] = set
		}
		if liked && !set[userID] {
			set[userID] = true
			b.posts[i].LikesCount++
		} else if !liked && set[userID] {
			delete(set, userID)
			b.posts[i].LikesCount--
		}
		c.JSON(http.StatusOK, gin.H{
			"likes_count": b.posts[i].LikesCount,
			"liked_by_me": liked,
		})
		return
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "post not found"})
}

func (b *Backend) getComments(c *gin.Context) {
	if b.intercept("comments") {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "injected failure"})
		return
	}
	postID := c.Param("id")
	b.mu.Lock()
	defer b.mu.Unlock()
	comments := b.comments[postID]
	if comments == nil {
		comments = []model.Comment{}
	}
	c.JSON(http.StatusOK, comments)
}

func (b *Backend) createComment(c *gin.Context) {
	if b.intercept("comment") {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "injected failure"})
		return
	}
	var req createCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": pkgvalidator.FormatValidationError(err)})
		return
	}
	postID := c.Param("id")
	author := b.author(c)

	b.mu.Lock()
	defer b.mu.Unlock()
	created := model.Comment{
		ID:         newServerID(),
		PostID:     postID,
		AuthorName: author.Username,
		Text:       req.Text,
		CreatedAt:  time.Now().UTC(),
	}
	b.comments[postID] = append(b.comments[postID], created)
	for i := range b.posts {
		if b.posts[i].ID == postID {
			b.posts[i].CommentsCount++
		}
	}
	c.JSON(http.StatusCreated, created)
}

func (b *Backend) sharePost(c *gin.Context) {
	if b.intercept("share") {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "injected failure"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (b *Backend) getHistory(kind model.ThreadKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		if b.intercept("history") {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "injected failure"})
			return
		}
		key := b.threadKey(c, kind)
		cursor, limit := pageParams(c)

		b.mu.Lock()
		defer b.mu.Unlock()
		history := b.messages[key]
		start, end, next, err := b.headWindow(len(history), cursor, limit)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		items := make([]model.Message, 0, end-start)
		items = append(items, history[start:end]...)
		c.JSON(http.StatusOK, gin.H{"items": items, "next_cursor": next})
	}
}

func (b *Backend) sendMessage(kind model.ThreadKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		if b.intercept("message") {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "injected failure"})
			return
		}
		var req sendMessageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": pkgvalidator.FormatValidationError(err)})
			return
		}
		key := b.threadKey(c, kind)
		author := b.author(c)

		b.mu.Lock()
		defer b.mu.Unlock()
		created := model.Message{
			ID:        newServerID(),
			ThreadKey: key,
			Sender:    author,
			Body:      req.Body,
			Status:    model.StatusSent,
			CreatedAt: time.Now().UTC(),
		}
		b.messages[key] = append(b.messages[key], created)
		c.JSON(http.StatusCreated, created)
	}
}

func (b *Backend) threadKey(c *gin.Context, kind model.ThreadKind) string {
	if kind == model.ThreadDM {
		return model.ThreadRef{Kind: kind, ID: c.Param("userId")}.Key()
	}
	return model.ThreadRef{Kind: kind, ID: c.Param("threadId")}.Key()
}

func (b *Backend) getNotifications(c *gin.Context) {
	if b.intercept("notifications") {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "injected failure"})
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	items := b.notifications
	if items == nil {
		items = []model.Notification{}
	}
	c.JSON(http.StatusOK, items)
}

func (b *Backend) markRead(c *gin.Context) {
	if b.intercept("read") {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "injected failure"})
		return
	}
	id := c.Param("id")
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.notifications {
		if b.notifications[i].ID == id {
			b.notifications[i].IsRead = true
			c.JSON(http.StatusOK, gin.H{"message": "marked as read"})
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "notification not found"})
}

func (b *Backend) markAllRead(c *gin.Context) {
	if b.intercept("read-all") {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "injected failure"})
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.notifications {
		b.notifications[i].IsRead = true
	}
	c.JSON(http.StatusOK, gin.H{"message": "all notifications marked as read"})
}

func (b *Backend) getTasks(c *gin.Context) {
	if b.intercept("tasks") {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "injected failure"})
		return
	}
	day, err := strconv.Atoi(c.Param("day"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid day"})
		return
	}
	key := model.ChallengeDayKey(c.Param("id"), day)
	cursor, limit := pageParams(c)

	b.mu.Lock()
	defer b.mu.Unlock()
	tasks := b.tasks[key]
	start, end, next, werr := b.tailWindow(len(tasks), cursor, limit)
	if werr != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": werr.Error()})
		return
	}
	items := make([]model.Task, 0, end-start)
	items = append(items, tasks[start:end]...)
	c.JSON(http.StatusOK, gin.H{"items": items, "next_cursor": next})
}

func (b *Backend) receipts(c *gin.Context) {
	conn, err := b.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	b.mu.Lock()
	b.wsConns[conn] = true
	b.mu.Unlock()

	// Drain the connection so closes are noticed
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				b.mu.Lock()
				delete(b.wsConns, conn)
				b.mu.Unlock()
				conn.Close()
				return
			}
		}
	}()
}
