package db

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/ptes-fixtures/seeder/internal/models"
)

// GeoIndexName is the name of the 2dsphere index on locations.location
const GeoIndexName = "location_2dsphere"

type mongoTransportMode struct {
	ID          primitive.ObjectID `bson:"_id"`
	Seq         int64              `bson:"seq"`
	ModeID      string             `bson:"mode_id"`
	Name        string             `bson:"name"`
	Description string             `bson:"description"`
}

type mongoGeoPoint struct {
	Type        string    `bson:"type"`
	Coordinates []float64 `bson:"coordinates"`
}

type mongoLocation struct {
	ID       primitive.ObjectID `bson:"_id"`
	Seq      int64              `bson:"seq"`
	Name     string             `bson:"name"`
	Type     string             `bson:"type"`
	Location mongoGeoPoint      `bson:"location"`
	Address  string             `bson:"address"`
	Category string             `bson:"category"`
}

type mongoTimetable struct {
	StartTime string `bson:"start_time"`
	EndTime   string `bson:"end_time"`
	Frequency string `bson:"frequency"`
}

type mongoRoute struct {
	ID              primitive.ObjectID   `bson:"_id"`
	Seq             int64                `bson:"seq"`
	RouteNumber     string               `bson:"route_number"`
	ModeID          string               `bson:"mode_id"`
	StartLocationID primitive.ObjectID   `bson:"start_location_id"`
	EndLocationID   primitive.ObjectID   `bson:"end_location_id"`
	Stops           []primitive.ObjectID `bson:"stops"`
	Fare            primitive.Decimal128 `bson:"fare"`
	EstimatedTime   int                  `bson:"estimated_time"`
	ServiceType     string               `bson:"service_type"`
	Timetable       mongoTimetable       `bson:"timetable"`
}

type mongoStop struct {
	ID            primitive.ObjectID `bson:"_id"`
	Seq           int64              `bson:"seq"`
	RouteID       primitive.ObjectID `bson:"route_id"`
	StopSequence  int                `bson:"stop_sequence"`
	LocationID    primitive.ObjectID `bson:"location_id"`
	ArrivalTime   string             `bson:"arrival_time"`
	DepartureTime string             `bson:"departure_time"`
}

type mongoJourneyLeg struct {
	RouteID         primitive.ObjectID   `bson:"route_id"`
	ModeID          string               `bson:"mode_id"`
	BoardingStopID  primitive.ObjectID   `bson:"boarding_stop_id"`
	AlightingStopID primitive.ObjectID   `bson:"alighting_stop_id"`
	Fare            primitive.Decimal128 `bson:"fare"`
	EstimatedTime   int                  `bson:"estimated_time"`
	Interchanges    int                  `bson:"interchanges"`
}

type mongoJourney struct {
	ID                   primitive.ObjectID   `bson:"_id"`
	Seq                  int64                `bson:"seq"`
	OriginID             primitive.ObjectID   `bson:"origin_id"`
	DestinationID        primitive.ObjectID   `bson:"destination_id"`
	Routes               []mongoJourneyLeg    `bson:"routes"`
	TotalFare            primitive.Decimal128 `bson:"total_fare"`
	TotalTime            int                  `bson:"total_time"`
	NumberOfInterchanges int                  `bson:"number_of_interchanges"`
}

// MongoStore keeps the fixture in five MongoDB collections. Foreign keys are
// stored as ObjectIDs and currency as Decimal128.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

// ConnectMongo connects to MongoDB and verifies the connection with a ping
func ConnectMongo(ctx context.Context, uri, database string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, connectionError("failed to create client", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, connectionError("failed to ping database", err)
	}

	return &MongoStore{client: client, db: client.Database(database)}, nil
}

// Close disconnects the client
func (m *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}

func (m *MongoStore) coll(name string) *mongo.Collection {
	return m.db.Collection(name)
}

// Reset drops the fixture collections and creates the 2dsphere index
func (m *MongoStore) Reset(ctx context.Context) error {
	for _, name := range models.Collections() {
		if err := m.coll(name).Drop(ctx); err != nil {
			return writeError("failed to drop "+name, err)
		}
	}

	_, err := m.coll(models.CollectionLocations).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "location", Value: "2dsphere"}},
		Options: options.Index().SetName(GeoIndexName),
	})
	if err != nil {
		return writeError("failed to create geospatial index", err)
	}
	return nil
}

// InsertTransportModes inserts the transport mode catalog
func (m *MongoStore) InsertTransportModes(ctx context.Context, modes []models.TransportMode) error {
	base, err := m.nextSeq(ctx, models.CollectionTransportModes)
	if err != nil {
		return err
	}
	docs := make([]any, len(modes))
	for i, mode := range modes {
		docs[i] = mongoTransportMode{
			ID:          primitive.NewObjectID(),
			Seq:         base + int64(i),
			ModeID:      mode.ModeID,
			Name:        mode.Name,
			Description: mode.Description,
		}
	}
	_, err = m.insertMany(ctx, models.CollectionTransportModes, docs)
	return err
}

// TransportModes returns every transport mode
func (m *MongoStore) TransportModes(ctx context.Context) ([]models.TransportMode, error) {
	var docs []mongoTransportMode
	if err := m.findAll(ctx, models.CollectionTransportModes, bson.D{}, &docs); err != nil {
		return nil, err
	}
	modes := make([]models.TransportMode, len(docs))
	for i, d := range docs {
		modes[i] = models.TransportMode{ModeID: d.ModeID, Name: d.Name, Description: d.Description}
	}
	return modes, nil
}

// InsertLocations inserts locations and returns their new IDs
func (m *MongoStore) InsertLocations(ctx context.Context, locations []models.Location) ([]string, error) {
	base, err := m.nextSeq(ctx, models.CollectionLocations)
	if err != nil {
		return nil, err
	}
	docs := make([]any, len(locations))
	for i, l := range locations {
		docs[i] = mongoLocation{
			ID:   primitive.NewObjectID(),
			Seq:  base + int64(i),
			Name: l.Name,
			Type: string(l.Type),
			Location: mongoGeoPoint{
				Type:        "Point",
				Coordinates: []float64{l.Location.Longitude(), l.Location.Latitude()},
			},
			Address:  l.Address,
			Category: string(l.Category),
		}
	}
	return m.insertMany(ctx, models.CollectionLocations, docs)
}

// Locations returns every location
func (m *MongoStore) Locations(ctx context.Context) ([]models.Location, error) {
	var docs []mongoLocation
	if err := m.findAll(ctx, models.CollectionLocations, bson.D{}, &docs); err != nil {
		return nil, err
	}
	locations := make([]models.Location, 0, len(docs))
	for _, d := range docs {
		if len(d.Location.Coordinates) != 2 {
			return nil, fmt.Errorf("location %s has %d coordinates", d.ID.Hex(), len(d.Location.Coordinates))
		}
		locations = append(locations, models.Location{
			ID:       d.ID.Hex(),
			Name:     d.Name,
			Type:     models.LocationType(d.Type),
			Category: models.LocationCategory(d.Category),
			Address:  d.Address,
			Location: models.NewGeoPoint(d.Location.Coordinates[0], d.Location.Coordinates[1]),
		})
	}
	return locations, nil
}

// InsertRoutes inserts routes and returns their new IDs
func (m *MongoStore) InsertRoutes(ctx context.Context, routes []models.Route) ([]string, error) {
	base, err := m.nextSeq(ctx, models.CollectionRoutes)
	if err != nil {
		return nil, err
	}
	docs := make([]any, len(routes))
	for i, r := range routes {
		start, err := objectID(r.StartLocationID)
		if err != nil {
			return nil, writeError("invalid start location", err)
		}
		end, err := objectID(r.EndLocationID)
		if err != nil {
			return nil, writeError("invalid end location", err)
		}
		stops, err := objectIDs(r.Stops)
		if err != nil {
			return nil, writeError("invalid route stops", err)
		}
		fare, err := decimal128(r.Fare)
		if err != nil {
			return nil, writeError("invalid route fare", err)
		}
		docs[i] = mongoRoute{
			ID:              primitive.NewObjectID(),
			Seq:             base + int64(i),
			RouteNumber:     r.RouteNumber,
			ModeID:          r.ModeID,
			StartLocationID: start,
			EndLocationID:   end,
			Stops:           stops,
			Fare:            fare,
			EstimatedTime:   r.EstimatedTime,
			ServiceType:     string(r.ServiceType),
			Timetable: mongoTimetable{
				StartTime: r.Timetable.StartTime,
				EndTime:   r.Timetable.EndTime,
				Frequency: r.Timetable.Frequency,
			},
		}
	}
	return m.insertMany(ctx, models.CollectionRoutes, docs)
}

// Routes returns every route
func (m *MongoStore) Routes(ctx context.Context) ([]models.Route, error) {
	return m.findRoutes(ctx, bson.D{})
}

// RoutesByID returns the routes with the given IDs, in the same order
func (m *MongoStore) RoutesByID(ctx context.Context, ids []string) ([]models.Route, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	oids, err := objectIDs(ids)
	if err != nil {
		return nil, err
	}
	found, err := m.findRoutes(ctx, bson.M{"_id": bson.M{"$in": oids}})
	if err != nil {
		return nil, err
	}
	return orderRoutes(ids, found)
}

func (m *MongoStore) findRoutes(ctx context.Context, filter any) ([]models.Route, error) {
	var docs []mongoRoute
	if err := m.findAll(ctx, models.CollectionRoutes, filter, &docs); err != nil {
		return nil, err
	}
	routes := make([]models.Route, 0, len(docs))
	for _, d := range docs {
		fare, err := decimal.NewFromString(d.Fare.String())
		if err != nil {
			return nil, fmt.Errorf("failed to parse fare of route %s: %w", d.ID.Hex(), err)
		}
		routes = append(routes, models.Route{
			ID:              d.ID.Hex(),
			RouteNumber:     d.RouteNumber,
			ModeID:          d.ModeID,
			StartLocationID: d.StartLocationID.Hex(),
			EndLocationID:   d.EndLocationID.Hex(),
			Stops:           hexIDs(d.Stops),
			Fare:            fare,
			EstimatedTime:   d.EstimatedTime,
			ServiceType:     models.ServiceType(d.ServiceType),
			Timetable: models.Timetable{
				StartTime: d.Timetable.StartTime,
				EndTime:   d.Timetable.EndTime,
				Frequency: d.Timetable.Frequency,
			},
		})
	}
	return routes, nil
}

// SetRouteStops replaces the stop list of one route
func (m *MongoStore) SetRouteStops(ctx context.Context, routeID string, locationIDs []string) error {
	oid, err := objectID(routeID)
	if err != nil {
		return writeError("invalid route id", err)
	}
	stops, err := objectIDs(locationIDs)
	if err != nil {
		return writeError("invalid route stops", err)
	}

	result, err := m.coll(models.CollectionRoutes).UpdateOne(ctx,
		bson.M{"_id": oid},
		bson.M{"$set": bson.M{"stops": stops}},
	)
	if err != nil {
		return writeError("failed to update stops of route "+routeID, err)
	}
	if result.MatchedCount != 1 {
		return writeError("failed to update stops", fmt.Errorf("route %s not found", routeID))
	}
	return nil
}

// InsertStops inserts stops and returns their new IDs
func (m *MongoStore) InsertStops(ctx context.Context, stops []models.Stop) ([]string, error) {
	base, err := m.nextSeq(ctx, models.CollectionStops)
	if err != nil {
		return nil, err
	}
	docs := make([]any, len(stops))
	for i, st := range stops {
		routeID, err := objectID(st.RouteID)
		if err != nil {
			return nil, writeError("invalid stop route", err)
		}
		locationID, err := objectID(st.LocationID)
		if err != nil {
			return nil, writeError("invalid stop location", err)
		}
		docs[i] = mongoStop{
			ID:            primitive.NewObjectID(),
			Seq:           base + int64(i),
			RouteID:       routeID,
			StopSequence:  st.StopSequence,
			LocationID:    locationID,
			ArrivalTime:   st.ArrivalTime,
			DepartureTime: st.DepartureTime,
		}
	}
	return m.insertMany(ctx, models.CollectionStops, docs)
}

// Stops returns every stop
func (m *MongoStore) Stops(ctx context.Context) ([]models.Stop, error) {
	return m.findStops(ctx, bson.D{}, insertionOrder)
}

// StopsByRoute returns one route's stops ordered by stop_sequence
func (m *MongoStore) StopsByRoute(ctx context.Context, routeID string) ([]models.Stop, error) {
	oid, err := objectID(routeID)
	if err != nil {
		return nil, err
	}
	return m.findStops(ctx, bson.M{"route_id": oid}, bson.D{{Key: "stop_sequence", Value: 1}})
}

func (m *MongoStore) findStops(ctx context.Context, filter any, sort bson.D) ([]models.Stop, error) {
	cur, err := m.coll(models.CollectionStops).Find(ctx, filter, options.Find().SetSort(sort))
	if err != nil {
		return nil, fmt.Errorf("failed to query stops: %w", err)
	}
	var docs []mongoStop
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode stops: %w", err)
	}

	stops := make([]models.Stop, len(docs))
	for i, d := range docs {
		stops[i] = models.Stop{
			ID:            d.ID.Hex(),
			RouteID:       d.RouteID.Hex(),
			StopSequence:  d.StopSequence,
			LocationID:    d.LocationID.Hex(),
			ArrivalTime:   d.ArrivalTime,
			DepartureTime: d.DepartureTime,
		}
	}
	return stops, nil
}

// InsertJourneys inserts journeys and returns their new IDs
func (m *MongoStore) InsertJourneys(ctx context.Context, journeys []models.Journey) ([]string, error) {
	base, err := m.nextSeq(ctx, models.CollectionJourneys)
	if err != nil {
		return nil, err
	}
	docs := make([]any, len(journeys))
	for i, j := range journeys {
		doc, err := toMongoJourney(j, base+int64(i))
		if err != nil {
			return nil, writeError("invalid journey", err)
		}
		docs[i] = doc
	}
	return m.insertMany(ctx, models.CollectionJourneys, docs)
}

func toMongoJourney(j models.Journey, seq int64) (mongoJourney, error) {
	origin, err := objectID(j.OriginID)
	if err != nil {
		return mongoJourney{}, err
	}
	destination, err := objectID(j.DestinationID)
	if err != nil {
		return mongoJourney{}, err
	}
	total, err := decimal128(j.TotalFare)
	if err != nil {
		return mongoJourney{}, err
	}

	legs := make([]mongoJourneyLeg, 0, len(j.Routes))
	for _, leg := range j.Routes {
		routeID, err := objectID(leg.RouteID)
		if err != nil {
			return mongoJourney{}, err
		}
		boarding, err := objectID(leg.BoardingStopID)
		if err != nil {
			return mongoJourney{}, err
		}
		alighting, err := objectID(leg.AlightingStopID)
		if err != nil {
			return mongoJourney{}, err
		}
		fare, err := decimal128(leg.Fare)
		if err != nil {
			return mongoJourney{}, err
		}
		legs = append(legs, mongoJourneyLeg{
			RouteID:         routeID,
			ModeID:          leg.ModeID,
			BoardingStopID:  boarding,
			AlightingStopID: alighting,
			Fare:            fare,
			EstimatedTime:   leg.EstimatedTime,
			Interchanges:    leg.Interchanges,
		})
	}

	return mongoJourney{
		ID:                   primitive.NewObjectID(),
		Seq:                  seq,
		OriginID:             origin,
		DestinationID:        destination,
		Routes:               legs,
		TotalFare:            total,
		TotalTime:            j.TotalTime,
		NumberOfInterchanges: j.NumberOfInterchanges,
	}, nil
}

// Journeys returns every journey
func (m *MongoStore) Journeys(ctx context.Context) ([]models.Journey, error) {
	var docs []mongoJourney
	if err := m.findAll(ctx, models.CollectionJourneys, bson.D{}, &docs); err != nil {
		return nil, err
	}

	journeys := make([]models.Journey, 0, len(docs))
	for _, d := range docs {
		total, err := decimal.NewFromString(d.TotalFare.String())
		if err != nil {
			return nil, fmt.Errorf("failed to parse fare of journey %s: %w", d.ID.Hex(), err)
		}
		j := models.Journey{
			ID:                   d.ID.Hex(),
			OriginID:             d.OriginID.Hex(),
			DestinationID:        d.DestinationID.Hex(),
			TotalFare:            total,
			TotalTime:            d.TotalTime,
			NumberOfInterchanges: d.NumberOfInterchanges,
		}
		for _, leg := range d.Routes {
			fare, err := decimal.NewFromString(leg.Fare.String())
			if err != nil {
				return nil, fmt.Errorf("failed to parse leg fare of journey %s: %w", d.ID.Hex(), err)
			}
			j.Routes = append(j.Routes, models.JourneyLeg{
				RouteID:         leg.RouteID.Hex(),
				ModeID:          leg.ModeID,
				BoardingStopID:  leg.BoardingStopID.Hex(),
				AlightingStopID: leg.AlightingStopID.Hex(),
				Fare:            fare,
				EstimatedTime:   leg.EstimatedTime,
				Interchanges:    leg.Interchanges,
			})
		}
		journeys = append(journeys, j)
	}
	return journeys, nil
}

// Counts returns the number of documents per collection
func (m *MongoStore) Counts(ctx context.Context) (map[string]int64, error) {
	counts := make(map[string]int64, len(models.Collections()))
	for _, name := range models.Collections() {
		n, err := m.coll(name).CountDocuments(ctx, bson.D{})
		if err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", name, err)
		}
		counts[name] = n
	}
	return counts, nil
}

// GeoIndexes lists the 2dsphere indexes on locations
func (m *MongoStore) GeoIndexes(ctx context.Context) ([]string, error) {
	cur, err := m.coll(models.CollectionLocations).Indexes().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list indexes: %w", err)
	}
	var indexes []struct {
		Name string `bson:"name"`
		Key  bson.D `bson:"key"`
	}
	if err := cur.All(ctx, &indexes); err != nil {
		return nil, fmt.Errorf("failed to decode indexes: %w", err)
	}

	var names []string
	for _, index := range indexes {
		for _, key := range index.Key {
			if kind, ok := key.Value.(string); ok && kind == "2dsphere" {
				names = append(names, index.Name)
				break
			}
		}
	}
	return names, nil
}

func (m *MongoStore) insertMany(ctx context.Context, collection string, docs []any) ([]string, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	result, err := m.coll(collection).InsertMany(ctx, docs)
	if err != nil {
		return nil, writeError("failed to insert "+collection, err)
	}
	ids := make([]string, len(result.InsertedIDs))
	for i, id := range result.InsertedIDs {
		oid, ok := id.(primitive.ObjectID)
		if !ok {
			return nil, writeError("failed to insert "+collection, fmt.Errorf("unexpected id type %T", id))
		}
		ids[i] = oid.Hex()
	}
	return ids, nil
}

// insertionOrder sorts on the seq field written by every insert. ObjectIDs are
// not used for ordering since their counter starts at a random value and wraps.
var insertionOrder = bson.D{{Key: "seq", Value: 1}}

// nextSeq returns the first free seq value of a collection. The fixture is
// append-only between resets, so the document count is the next position.
func (m *MongoStore) nextSeq(ctx context.Context, collection string) (int64, error) {
	n, err := m.coll(collection).CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, writeError("failed to count "+collection, err)
	}
	return n, nil
}

// findAll decodes every matching document in insertion order
func (m *MongoStore) findAll(ctx context.Context, collection string, filter any, out any) error {
	cur, err := m.coll(collection).Find(ctx, filter, options.Find().SetSort(insertionOrder))
	if err != nil {
		return fmt.Errorf("failed to query %s: %w", collection, err)
	}
	if err := cur.All(ctx, out); err != nil {
		return fmt.Errorf("failed to decode %s: %w", collection, err)
	}
	return nil
}

func objectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("invalid object id %q: %w", id, err)
	}
	return oid, nil
}

func objectIDs(ids []string) ([]primitive.ObjectID, error) {
	oids := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		oid, err := objectID(id)
		if err != nil {
			return nil, err
		}
		oids = append(oids, oid)
	}
	return oids, nil
}

func hexIDs(oids []primitive.ObjectID) []string {
	ids := make([]string, len(oids))
	for i, oid := range oids {
		ids[i] = oid.Hex()
	}
	return ids
}

func decimal128(d decimal.Decimal) (primitive.Decimal128, error) {
	return primitive.ParseDecimal128(d.StringFixed(2))
}
