package store

import (
	"context"
	"errors"
	"time"

	"civic-reporter/internal/apperror"
	"civic-reporter/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const voteRetries = 3

type MongoIssueStore struct {
	collection *mongo.Collection
	now        func() time.Time
}

func NewMongoIssueStore(db *mongo.Database) *MongoIssueStore {
	return &MongoIssueStore{
		collection: db.Collection(IssuesCollection),
		now:        time.Now,
	}
}

func (s *MongoIssueStore) Find(ctx context.Context, query models.IssueQuery) ([]*models.Issue, int64, error) {
	query = query.Normalize()
	filter := BuildIssueFilter(query.Filter)

	total, err := s.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, apperror.Persistence(err, "count issues")
	}

	opts := options.Find().
		SetSort(BuildIssueSort(query.Sort)).
		SetSkip(query.Skip()).
		SetLimit(int64(query.Limit))

	cursor, err := s.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, apperror.Persistence(err, "find issues")
	}
	defer cursor.Close(ctx)

	issues := []*models.Issue{}
	if err := cursor.All(ctx, &issues); err != nil {
		return nil, 0, apperror.Persistence(err, "decode issues")
	}

	return issues, total, nil
}

func (s *MongoIssueStore) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Issue, error) {
	var issue models.Issue
	err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&issue)
	if err != nil {
		return nil, translate(err, "issue %s not found", id.Hex())
	}
	return &issue, nil
}

func (s *MongoIssueStore) Create(ctx context.Context, issue *models.Issue) (*models.Issue, error) {
	created := issue.Clone()
	if created.ID.IsZero() {
		created.ID = primitive.NewObjectID()
	}
	now := s.now()
	if created.CreatedAt.IsZero() {
		created.CreatedAt = now
	}
	created.UpdatedAt = now
	created.PriorityRank = created.Priority.Rank()

	if _, err := s.collection.InsertOne(ctx, created); err != nil {
		return nil, apperror.Persistence(err, "create issue")
	}
	return created, nil
}

func (s *MongoIssueStore) Save(ctx context.Context, issue *models.Issue) (*models.Issue, error) {
	saved := issue.Clone()
	saved.UpdatedAt = s.now()
	saved.PriorityRank = saved.Priority.Rank()

	result, err := s.collection.ReplaceOne(ctx, bson.M{"_id": saved.ID}, saved)
	if err != nil {
		return nil, apperror.Persistence(err, "save issue")
	}
	if result.MatchedCount == 0 {
		return nil, apperror.NotFound("issue %s not found", saved.ID.Hex())
	}
	return saved, nil
}

func (s *MongoIssueStore) Delete(ctx context.Context, id primitive.ObjectID) error {
	result, err := s.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return apperror.Persistence(err, "delete issue")
	}
	if result.DeletedCount == 0 {
		return apperror.NotFound("issue %s not found", id.Hex())
	}
	return nil
}

func (s *MongoIssueStore) AddReporterAndDuplicate(ctx context.Context, canonicalID, reporter, duplicateID primitive.ObjectID) (*models.Issue, error) {
	update := bson.M{
		"$addToSet": bson.M{
			"reporters":  reporter,
			"duplicates": duplicateID,
		},
		"$set": bson.M{"updatedAt": s.now()},
	}
	return s.findOneAndUpdate(ctx, bson.M{"_id": canonicalID, "mergedInto": nil}, update)
}

// ToggleVote flips membership with conditional updates so votes and voters
// change together and a double submission cannot count twice.
func (s *MongoIssueStore) ToggleVote(ctx context.Context, id, userID primitive.ObjectID) (*models.Issue, bool, error) {
	for attempt := 0; attempt < voteRetries; attempt++ {
		added, err := s.findOneAndUpdate(ctx,
			bson.M{"_id": id, "voters": bson.M{"$ne": userID}},
			bson.M{
				"$addToSet": bson.M{"voters": userID},
				"$inc":      bson.M{"votes": 1},
				"$set":      bson.M{"updatedAt": s.now()},
			},
		)
		if err == nil {
			return added, true, nil
		}
		if !apperror.IsKind(err, apperror.KindNotFound) {
			return nil, false, err
		}

		removed, err := s.findOneAndUpdate(ctx,
			bson.M{"_id": id, "voters": userID},
			bson.M{
				"$pull": bson.M{"voters": userID},
				"$inc":  bson.M{"votes": -1},
				"$set":  bson.M{"updatedAt": s.now()},
			},
		)
		if err == nil {
			return removed, false, nil
		}
		if !apperror.IsKind(err, apperror.KindNotFound) {
			return nil, false, err
		}
	}

	count, err := s.collection.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return nil, false, apperror.Persistence(err, "toggle vote")
	}
	if count == 0 {
		return nil, false, apperror.NotFound("issue %s not found", id.Hex())
	}
	return nil, false, apperror.Persistence(errors.New("concurrent vote updates"), "toggle vote")
}

func (s *MongoIssueStore) UpdatePriority(ctx context.Context, id primitive.ObjectID, update PriorityUpdate) (*models.Issue, error) {
	set := bson.M{
		"priority":        update.Priority,
		"priorityRank":    update.Priority.Rank(),
		"priorityReasons": nonNilStrings(update.Reasons),
		"updatedAt":       s.now(),
	}
	if update.Auto != nil {
		set["priorityAuto"] = *update.Auto
	}
	if update.Floor != nil {
		set["priorityFloor"] = *update.Floor
	}
	return s.findOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set})
}

func (s *MongoIssueStore) ApplyStatusChange(ctx context.Context, id primitive.ObjectID, change models.StatusChange) (*models.Issue, error) {
	set := bson.M{
		"status":    change.Status,
		"updatedAt": change.At,
	}
	if change.AssignedTo != nil {
		set["assignedTo"] = change.AssignedTo
	}
	if change.ActualResolutionTime != nil {
		set["actualResolutionTime"] = *change.ActualResolutionTime
	}
	if change.ResolutionDetails != nil {
		set["resolutionDetails"] = change.ResolutionDetails
	}

	update := bson.M{
		"$set": set,
		"$push": bson.M{
			"statusHistory": change.History,
			"notifications": change.Notification,
		},
	}
	return s.findOneAndUpdate(ctx, bson.M{"_id": id}, update)
}

func (s *MongoIssueStore) MarkNotificationsRead(ctx context.Context, id primitive.ObjectID) (*models.Issue, error) {
	update := bson.M{
		"$set": bson.M{
			"notifications.$[].read": true,
			"updatedAt":              s.now(),
		},
	}
	return s.findOneAndUpdate(ctx, bson.M{"_id": id}, update)
}

func (s *MongoIssueStore) FindMergeCandidates(ctx context.Context, category models.Category, point models.Location, radiusMeters float64, limit int) ([]*models.Issue, error) {
	if limit < 1 {
		limit = 1
	}
	filter := bson.M{
		"category":   category,
		"mergedInto": nil,
		"status":     bson.M{"$nin": models.TerminalStatuses()},
		"location": bson.M{
			"$nearSphere": bson.M{
				"$geometry": bson.M{
					"type":        "Point",
					"coordinates": []float64{point.Longitude(), point.Latitude()},
				},
				"$maxDistance": radiusMeters,
			},
		},
	}

	cursor, err := s.collection.Find(ctx, filter, options.Find().SetLimit(int64(limit)))
	if err != nil {
		return nil, apperror.Persistence(err, "find merge candidates")
	}
	defer cursor.Close(ctx)

	candidates := []*models.Issue{}
	if err := cursor.All(ctx, &candidates); err != nil {
		return nil, apperror.Persistence(err, "decode merge candidates")
	}
	return candidates, nil
}

func (s *MongoIssueStore) FindAging(ctx context.Context, createdBefore time.Time, limit int) ([]*models.Issue, error) {
	filter := bson.M{
		"mergedInto":   nil,
		"priorityAuto": true,
		"status":       bson.M{"$nin": models.TerminalStatuses()},
		"createdAt":    bson.M{"$lte": createdBefore},
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: 1}}).
		SetLimit(int64(limit))

	cursor, err := s.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, apperror.Persistence(err, "find aging issues")
	}
	defer cursor.Close(ctx)

	issues := []*models.Issue{}
	if err := cursor.All(ctx, &issues); err != nil {
		return nil, apperror.Persistence(err, "decode aging issues")
	}
	return issues, nil
}

type countBucket struct {
	ID    string `bson:"_id"`
	Count int64  `bson:"count"`
}

type statsFacets struct {
	ByStatus   []countBucket `bson:"byStatus"`
	ByCategory []countBucket `bson:"byCategory"`
	ByPriority []countBucket `bson:"byPriority"`
	Totals     []struct {
		Total         int64   `bson:"total"`
		Merged        int64   `bson:"merged"`
		Votes         int64   `bson:"votes"`
		AvgResolution float64 `bson:"avgResolution"`
		Measured      int64   `bson:"measured"`
	} `bson:"totals"`
}

func (s *MongoIssueStore) Stats(ctx context.Context) (*models.IssueStats, error) {
	canonicalOnly := bson.D{{Key: "$match", Value: bson.D{{Key: "mergedInto", Value: nil}}}}
	groupBy := func(field string) bson.A {
		return bson.A{
			canonicalOnly,
			bson.D{{Key: "$group", Value: bson.D{
				{Key: "_id", Value: "$" + field},
				{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
			}}},
		}
	}

	pipeline := mongo.Pipeline{
		{{Key: "$facet", Value: bson.D{
			{Key: "byStatus", Value: groupBy("status")},
			{Key: "byCategory", Value: groupBy("category")},
			{Key: "byPriority", Value: groupBy("priority")},
			{Key: "totals", Value: bson.A{
				bson.D{{Key: "$group", Value: bson.D{
					{Key: "_id", Value: nil},
					{Key: "total", Value: bson.D{{Key: "$sum", Value: 1}}},
					{Key: "merged", Value: bson.D{{Key: "$sum", Value: bson.D{
						{Key: "$cond", Value: bson.A{bson.D{{Key: "$ifNull", Value: bson.A{"$mergedInto", false}}}, 1, 0}},
					}}}},
					{Key: "votes", Value: bson.D{{Key: "$sum", Value: "$votes"}}},
					{Key: "avgResolution", Value: bson.D{{Key: "$avg", Value: "$actualResolutionTime"}}},
					{Key: "measured", Value: bson.D{{Key: "$sum", Value: bson.D{
						{Key: "$cond", Value: bson.A{bson.D{{Key: "$isNumber", Value: "$actualResolutionTime"}}, 1, 0}},
					}}}},
				}}},
			}},
		}}},
	}

	cursor, err := s.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, apperror.Persistence(err, "aggregate issue stats")
	}
	defer cursor.Close(ctx)

	var facets []statsFacets
	if err := cursor.All(ctx, &facets); err != nil {
		return nil, apperror.Persistence(err, "decode issue stats")
	}

	stats := &models.IssueStats{
		ByStatus:   map[string]int64{},
		ByCategory: map[string]int64{},
		ByPriority: map[string]int64{},
	}
	if len(facets) == 0 {
		return stats, nil
	}

	f := facets[0]
	for _, b := range f.ByStatus {
		stats.ByStatus[b.ID] = b.Count
	}
	for _, b := range f.ByCategory {
		stats.ByCategory[b.ID] = b.Count
	}
	for _, b := range f.ByPriority {
		stats.ByPriority[b.ID] = b.Count
	}
	if len(f.Totals) > 0 {
		t := f.Totals[0]
		stats.Total = t.Total
		stats.Merged = t.Merged
		stats.Canonical = t.Total - t.Merged
		stats.TotalVotes = t.Votes
		stats.AverageResolutionHours = t.AvgResolution
		stats.ResolvedWithMeasurement = t.Measured
	}
	return stats, nil
}

func (s *MongoIssueStore) findOneAndUpdate(ctx context.Context, filter, update bson.M) (*models.Issue, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var issue models.Issue
	err := s.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&issue)
	if err != nil {
		return nil, translate(err, "issue not found")
	}
	return &issue, nil
}

// translate maps driver errors onto the error taxonomy.
func translate(err error, format string, args ...interface{}) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return apperror.NotFound(format, args...)
	}
	return apperror.Persistence(err, "mongo operation failed")
}

func nonNilStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
