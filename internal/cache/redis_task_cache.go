package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/redis/rueidis"

	"github.com/saheelsapovadia/dopamine-detox-backend/internal/constants"
	dto "github.com/saheelsapovadia/dopamine-detox-backend/internal/data_models"
	model "github.com/saheelsapovadia/dopamine-detox-backend/internal/models"
)

// RedisTaskCache keys:
//
//	tasks:data:{user}:{day} -> hash {task_id: JSON task record}
//	tasks:meta:{user}:{day} -> hash {total, completed}
//
// Both keys expire after the configured retention window so stale days do not
// accumulate.
type RedisTaskCache struct {
	client rueidis.Client
	ttl    int64
}

func NewRedisTaskCache(client rueidis.Client, ttlSeconds int) *RedisTaskCache {
	return &RedisTaskCache{client: client, ttl: int64(ttlSeconds)}
}

func dataKey(userID, day string) string {
	return "tasks:data:" + userID + ":" + day
}

func metaKey(userID, day string) string {
	return "tasks:meta:" + userID + ":" + day
}

func unavailable(op string, err error) error {
	log.Printf("task cache %s error: %v", op, err)
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

func (c *RedisTaskCache) doMulti(ctx context.Context, op string, cmds []rueidis.Completed) error {
	for _, res := range c.client.DoMulti(ctx, cmds...) {
		if err := res.Error(); err != nil && !rueidis.IsRedisNil(err) {
			return unavailable(op, err)
		}
	}
	return nil
}

func (c *RedisTaskCache) TasksForDate(ctx context.Context, userID, day string) ([]model.Task, error) {
	fields, err := c.client.Do(ctx, c.client.B().Hgetall().Key(dataKey(userID, day)).Build()).AsStrMap()
	if err != nil {
		return nil, unavailable("get_tasks_for_date", err)
	}
	if len(fields) == 0 {
		return nil, ErrMiss
	}
	tasks := parseDayHash(fields)
	sortTasks(tasks)
	return tasks, nil
}

func (c *RedisTaskCache) Task(ctx context.Context, userID, day, taskID string) (*model.Task, error) {
	raw, err := c.client.Do(ctx, c.client.B().Hget().Key(dataKey(userID, day)).Field(taskID).Build()).ToString()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, nil
		}
		return nil, unavailable("get_task", err)
	}
	var t model.Task
	if err := json.Unmarshal([]byte(raw), &t); err != nil {
		return nil, nil
	}
	return &t, nil
}

func (c *RedisTaskCache) HighPriorityTask(ctx context.Context, userID, day string) (*model.Task, error) {
	fields, err := c.client.Do(ctx, c.client.B().Hgetall().Key(dataKey(userID, day)).Build()).AsStrMap()
	if err != nil {
		return nil, unavailable("get_high_priority_task", err)
	}
	for _, t := range parseDayHash(fields) {
		if t.Priority == constants.PriorityHigh {
			t := t
			return &t, nil
		}
	}
	return nil, nil
}

func (c *RedisTaskCache) SetTask(ctx context.Context, userID, day string, task model.Task) error {
	raw, err := json.Marshal(task)
	if err != nil {
		return err
	}
	dkey, mkey := dataKey(userID, day), metaKey(userID, day)

	cmds := []rueidis.Completed{
		c.client.B().Hset().Key(dkey).FieldValue().FieldValue(task.ID, string(raw)).Build(),
		c.client.B().Hdel().Key(dkey).Field(emptySentinel).Build(),
		c.client.B().Hincrby().Key(mkey).Field("total").Increment(1).Build(),
	}
	if task.Status == constants.StatusCompleted {
		cmds = append(cmds, c.client.B().Hincrby().Key(mkey).Field("completed").Increment(1).Build())
	}
	cmds = append(cmds,
		c.client.B().Expire().Key(dkey).Seconds(c.ttl).Build(),
		c.client.B().Expire().Key(mkey).Seconds(c.ttl).Build(),
	)
	return c.doMulti(ctx, "set_task", cmds)
}

func (c *RedisTaskCache) SetTasksBatch(ctx context.Context, userID, day string, tasks []model.Task) error {
	if len(tasks) == 0 {
		return nil
	}
	dkey, mkey := dataKey(userID, day), metaKey(userID, day)

	hset := c.client.B().Hset().Key(dkey).FieldValue()
	for _, t := range tasks {
		raw, err := json.Marshal(t)
		if err != nil {
			return err
		}
		hset = hset.FieldValue(t.ID, string(raw))
	}

	cmds := []rueidis.Completed{
		hset.Build(),
		c.client.B().Hdel().Key(dkey).Field(emptySentinel).Build(),
		c.client.B().Hincrby().Key(mkey).Field("total").Increment(int64(len(tasks))).Build(),
	}
	if completed := countCompleted(tasks); completed > 0 {
		cmds = append(cmds, c.client.B().Hincrby().Key(mkey).Field("completed").Increment(int64(completed)).Build())
	}
	cmds = append(cmds,
		c.client.B().Expire().Key(dkey).Seconds(c.ttl).Build(),
		c.client.B().Expire().Key(mkey).Seconds(c.ttl).Build(),
	)
	return c.doMulti(ctx, "set_tasks_batch", cmds)
}

func (c *RedisTaskCache) UpdateTask(ctx context.Context, userID, day, taskID string, upd dto.TaskUpdate) (*model.Task, error) {
	dkey, mkey := dataKey(userID, day), metaKey(userID, day)

	raw, err := c.client.Do(ctx, c.client.B().Hget().Key(dkey).Field(taskID).Build()).ToString()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, nil
		}
		return nil, unavailable("update_task", err)
	}
	var task model.Task
	if err := json.Unmarshal([]byte(raw), &task); err != nil {
		return nil, nil
	}

	delta := applyUpdate(&task, upd, time.Now().UTC())
	out, err := json.Marshal(task)
	if err != nil {
		return nil, err
	}

	cmds := []rueidis.Completed{
		c.client.B().Hset().Key(dkey).FieldValue().FieldValue(taskID, string(out)).Build(),
	}
	if delta != 0 {
		cmds = append(cmds, c.client.B().Hincrby().Key(mkey).Field("completed").Increment(int64(delta)).Build())
	}
	cmds = append(cmds,
		c.client.B().Expire().Key(dkey).Seconds(c.ttl).Build(),
		c.client.B().Expire().Key(mkey).Seconds(c.ttl).Build(),
	)
	if err := c.doMulti(ctx, "update_task", cmds); err != nil {
		return nil, err
	}
	return &task, nil
}

func (c *RedisTaskCache) DeleteTask(ctx context.Context, userID, day, taskID string, wasCompleted bool) error {
	dkey, mkey := dataKey(userID, day), metaKey(userID, day)

	cmds := []rueidis.Completed{
		c.client.B().Hdel().Key(dkey).Field(taskID).Build(),
		c.client.B().Hincrby().Key(mkey).Field("total").Increment(-1).Build(),
	}
	if wasCompleted {
		cmds = append(cmds, c.client.B().Hincrby().Key(mkey).Field("completed").Increment(-1).Build())
	}
	cmds = append(cmds,
		c.client.B().Expire().Key(dkey).Seconds(c.ttl).Build(),
		c.client.B().Expire().Key(mkey).Seconds(c.ttl).Build(),
	)
	return c.doMulti(ctx, "delete_task", cmds)
}

func (c *RedisTaskCache) Hydrate(ctx context.Context, userID, day string, tasks []model.Task) error {
	dkey, mkey := dataKey(userID, day), metaKey(userID, day)

	cmds := []rueidis.Completed{
		c.client.B().Del().Key(dkey).Build(),
		c.client.B().Del().Key(mkey).Build(),
	}

	if len(tasks) > 0 {
		hset := c.client.B().Hset().Key(dkey).FieldValue()
		for _, t := range tasks {
			raw, err := json.Marshal(t)
			if err != nil {
				return err
			}
			hset = hset.FieldValue(t.ID, string(raw))
		}
		cmds = append(cmds, hset.Build())
	} else {
		cmds = append(cmds, c.client.B().Hset().Key(dkey).FieldValue().FieldValue(emptySentinel, "1").Build())
	}

	cmds = append(cmds,
		c.client.B().Hset().Key(mkey).FieldValue().
			FieldValue("total", fmt.Sprintf("%d", len(tasks))).
			FieldValue("completed", fmt.Sprintf("%d", countCompleted(tasks))).
			Build(),
		c.client.B().Expire().Key(dkey).Seconds(c.ttl).Build(),
		c.client.B().Expire().Key(mkey).Seconds(c.ttl).Build(),
	)
	return c.doMulti(ctx, "hydrate", cmds)
}

func (c *RedisTaskCache) IsHydrated(ctx context.Context, userID, day string) (bool, error) {
	n, err := c.client.Do(ctx, c.client.B().Exists().Key(dataKey(userID, day)).Build()).AsInt64()
	if err != nil {
		return false, unavailable("is_hydrated", err)
	}
	return n > 0, nil
}

func (c *RedisTaskCache) DaySummaries(ctx context.Context, userID, referenceDay string, numDays int) ([]dto.DaySummary, error) {
	ref, err := time.Parse(model.DateLayout, referenceDay)
	if err != nil {
		return nil, err
	}

	days := make([]string, 0, numDays)
	cmds := make([]rueidis.Completed, 0, numDays)
	for i := 0; i < numDays; i++ {
		day := ref.AddDate(0, 0, -i).Format(model.DateLayout)
		days = append(days, day)
		cmds = append(cmds, c.client.B().Hgetall().Key(metaKey(userID, day)).Build())
	}

	results := c.client.DoMulti(ctx, cmds...)
	today := time.Now().UTC().Format(model.DateLayout)

	summaries := make([]dto.DaySummary, 0, numDays)
	for i, res := range results {
		meta, err := res.AsStrMap()
		if err != nil && !rueidis.IsRedisNil(err) {
			return nil, unavailable("get_day_summaries", err)
		}
		total := atoi(meta["total"])
		completed := atoi(meta["completed"])
		summaries = append(summaries, dto.NewDaySummary(days[i], today, total, completed))
	}
	return summaries, nil
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
