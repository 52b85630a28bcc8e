package store

const schema = `
CREATE TABLE IF NOT EXISTS locations (
    place_id            TEXT PRIMARY KEY,
    name                TEXT NOT NULL,
    address             TEXT NOT NULL DEFAULT '',
    lat                 REAL NOT NULL DEFAULT 0,
    lng                 REAL NOT NULL DEFAULT 0,
    rating              REAL,
    user_ratings_total  INTEGER NOT NULL DEFAULT 0,
    price_level         INTEGER,
    types               TEXT NOT NULL DEFAULT '[]',
    phone               TEXT NOT NULL DEFAULT '',
    website             TEXT NOT NULL DEFAULT '',

    review_count            INTEGER NOT NULL DEFAULT 0,
    avg_food_drink_quality  REAL,
    avg_service_quality     REAL,
    avg_value_score         REAL,
    avg_divey_score         REAL,
    avg_classic_institution REAL,
    avg_unpretentious       REAL,
    avg_authenticity        REAL,
    avg_would_recommend     REAL,
    avg_memorable           REAL,

    umap_x        REAL,
    umap_y        REAL,
    auto_tags     TEXT NOT NULL DEFAULT '[]',
    anomaly_score REAL,

    collected_at DATETIME NOT NULL,
    updated_at   DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_locations_rating ON locations(rating);

CREATE TABLE IF NOT EXISTS reviews (
    id           TEXT PRIMARY KEY,
    place_id     TEXT NOT NULL REFERENCES locations(place_id),
    author_name  TEXT NOT NULL DEFAULT '',
    rating       INTEGER,
    review_text  TEXT NOT NULL DEFAULT '',
    reviewed_at  DATETIME,
    collected_at DATETIME NOT NULL,
    analyzed_at  DATETIME,
    model        TEXT NOT NULL DEFAULT '',

    food_drink_quality  REAL,
    service_quality     REAL,
    value_score         REAL,
    divey_score         REAL,
    classic_institution REAL,
    unpretentious       REAL,
    authenticity        REAL,
    would_recommend     REAL,
    memorable           REAL
);

CREATE INDEX IF NOT EXISTS idx_reviews_place ON reviews(place_id);
CREATE INDEX IF NOT EXISTS idx_reviews_analyzed ON reviews(analyzed_at);
`
